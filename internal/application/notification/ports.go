package notification

import (
	"context"
	"time"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/provider"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/storage"
)

// CacheStore is the local mirror the services read and write
type CacheStore interface {
	ReplaceMirror(ctx context.Context, m notification.Mirror) error
	UpsertInvoices(ctx context.Context, invoices []notification.Invoice) (notification.UpsertResult, error)
	ListCompanies(ctx context.Context, activeOnly bool) ([]notification.Company, error)
	GetCompany(ctx context.Context, id string) (*notification.Company, error)
	ListDispatchCandidates(ctx context.Context) ([]notification.DispatchCandidate, error)
	FindInvoiceByProviderID(ctx context.Context, providerInvoiceID string) (*notification.Invoice, error)
	FindInvoiceForPeriod(ctx context.Context, companyID string, period notification.Period) (*notification.Invoice, error)
	ActiveTemplate(ctx context.Context, key string) (*notification.Template, error)
	ConfigValue(ctx context.Context, key string) (string, bool, error)
	HasSuccessfulSend(ctx context.Context, key notification.DedupKey) (bool, error)
	AppendSendRecord(ctx context.Context, rec notification.SendRecord) error
	ListSuccessfulSends(ctx context.Context) ([]notification.SendRecord, error)
}

// RemoteSource is the system of record mirrored into the cache
type RemoteSource interface {
	FetchMirror(ctx context.Context) (notification.Mirror, error)
	AppendSendRecord(ctx context.Context, rec notification.SendRecord) error
}

// InvoiceSearcher pages through the billing provider's invoices
type InvoiceSearcher interface {
	SearchInvoices(ctx context.Context, q provider.SearchQuery) (*provider.SearchPage, error)
}

// DocumentFetcher downloads an invoice's payment slip
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, providerInvoiceID string) ([]byte, error)
}

// Messenger delivers messages through the messaging gateway
type Messenger interface {
	SendText(ctx context.Context, phone, message string) error
	SendDocument(ctx context.Context, phone string, pdf []byte, filename, caption string) error
}

// DocumentArchive keeps a copy of delivered documents
type DocumentArchive interface {
	Archive(ctx context.Context, doc storage.Document) (string, error)
}

// Pacer spaces out gateway calls. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Recorder receives dispatcher metrics
type Recorder interface {
	Sent(ctx context.Context, notificationType string)
	Skipped(ctx context.Context, reason string)
	Failed(ctx context.Context, notificationType string)
	InvoicesSynced(ctx context.Context, n int)
	RunFinished(ctx context.Context, job, outcome string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) Sent(context.Context, string) {}
func (noopRecorder) Skipped(context.Context, string) {}
func (noopRecorder) Failed(context.Context, string) {}
func (noopRecorder) InvoicesSynced(context.Context, int) {}
func (noopRecorder) RunFinished(context.Context, string, string, time.Duration) {}

func recorderOrNoop(r Recorder) Recorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}
