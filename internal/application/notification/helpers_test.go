package notification

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/persistence"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/provider"
)

var saoPaulo = mustLocation("America/Sao_Paulo")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// clockAt returns a clock at 09:00 local time on the given day
func clockAt(y int, m time.Month, d int) Clock {
	return FixedClock(time.Date(y, m, d, 9, 0, 0, 0, saoPaulo))
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func strPtr(s string) *string { return &s }

func newStore(t *testing.T) *persistence.CacheStore {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "cache.db"),
		BusyTimeout:     time.Second,
		MaxOpenConns:    1,
		ConnMaxLifetime: 60,
	}, zap.NewNop(), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(zap.NewNop()))
	return persistence.NewCacheStore(db.DB)
}

var padaria = notification.Company{
	ID:                 "c1",
	Name:               "Padaria Central",
	TaxID:              "12.345.678/0001-90",
	Phone:              "(11) 98765-4321",
	DueDay:             10,
	MonthlyAmountCents: 45000,
	Active:             true,
}

func defaultTemplates() []notification.Template {
	return []notification.Template{
		{ID: "t1", Key: notification.TemplateBeforeDue, Body: "Olá {{empresa}}, seu boleto {{competencia}} vence em {{vencimento}} no valor de R$ {{valor}}.", Active: true},
		{ID: "t2", Key: notification.TemplateReminderToday, Body: "{{empresa}}, seu boleto vence hoje.", Active: true},
		{ID: "t3", Key: notification.TemplateAfterDue, Body: "{{empresa}}, boleto {{competencia}} em atraso há {{dias_atraso}} dias.", Active: true},
	}
}

func seed(t *testing.T, store *persistence.CacheStore, companies []notification.Company, templates []notification.Template, invoices ...notification.Invoice) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.ReplaceMirror(ctx, notification.Mirror{Companies: companies, Templates: templates}))
	if len(invoices) > 0 {
		res, err := store.UpsertInvoices(ctx, invoices)
		require.NoError(t, err)
		require.Empty(t, res.Failed)
	}
}

func invoiceFor(companyID, providerID string, status notification.InvoiceStatus, due *time.Time) notification.Invoice {
	return notification.Invoice{
		ProviderInvoiceID: providerID,
		CompanyID:         strPtr(companyID),
		TaxID:             padaria.TaxID,
		Status:            status,
		AmountCents:       45000,
		DueDate:           due,
		Period:            notification.PeriodOf(*due),
		SyncedAt:          time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

type sentMessage struct {
	Kind     string
	Phone    string
	Text     string
	Filename string
	Size     int
}

// fakeMessenger records calls and fails according to script, one entry per call
type fakeMessenger struct {
	mu     sync.Mutex
	calls  []sentMessage
	script []error
	always error
}

func (m *fakeMessenger) next() error {
	if m.always != nil {
		return m.always
	}
	if len(m.script) == 0 {
		return nil
	}
	err := m.script[0]
	m.script = m.script[1:]
	return err
}

func (m *fakeMessenger) SendText(_ context.Context, phone, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sentMessage{Kind: "text", Phone: phone, Text: message})
	return m.next()
}

func (m *fakeMessenger) SendDocument(_ context.Context, phone string, pdf []byte, filename, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sentMessage{Kind: "document", Phone: phone, Text: caption, Filename: filename, Size: len(pdf)})
	return m.next()
}

func (m *fakeMessenger) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Kind)
	}
	return out
}

type fakeDocuments struct {
	docs  map[string][]byte
	err   error
	calls int
}

func (f *fakeDocuments) FetchDocument(_ context.Context, id string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, notification.ErrDocumentUnavailable
}

// fakeSearcher serves pages in order; errs maps a page number to a failure
type fakeSearcher struct {
	pages   map[int]*provider.SearchPage
	errs    map[int]error
	queries []provider.SearchQuery
}

func (f *fakeSearcher) SearchInvoices(_ context.Context, q provider.SearchQuery) (*provider.SearchPage, error) {
	f.queries = append(f.queries, q)
	if err, ok := f.errs[q.Page]; ok {
		return nil, err
	}
	if p, ok := f.pages[q.Page]; ok {
		return p, nil
	}
	return &provider.SearchPage{}, nil
}

type fakeRemote struct {
	mirror    notification.Mirror
	err       error
	appendErr error
	appended  []notification.SendRecord
}

func (f *fakeRemote) FetchMirror(context.Context) (notification.Mirror, error) {
	return f.mirror, f.err
}

func (f *fakeRemote) AppendSendRecord(_ context.Context, rec notification.SendRecord) error {
	f.appended = append(f.appended, rec)
	return f.appendErr
}

var errSessionLost = &gateway.TransientError{Message: "whatsapp session disconnected"}

var errBadNumber = &gateway.PermanentError{StatusCode: 400, Message: "invalid phone"}

func noPacing() Pacer { return rate.NewLimiter(rate.Inf, 1) }

func fastRetry() gateway.RetryPolicy { return gateway.RetryPolicy{Attempts: 3, Delay: 0} }

func newTestScheduler(store *persistence.CacheStore, docs DocumentFetcher, remote *fakeRemote, clock Clock, opts ...SchedulerOption) *Scheduler {
	var remoteLog sendRecordAppender
	if remote != nil {
		remoteLog = remote
	}
	opts = append([]SchedulerOption{WithPacer(noPacing()), WithRetryPolicy(fastRetry())}, opts...)
	return NewScheduler(
		store,
		NewTemplateResolver(store, clock),
		docs,
		NewMirroredSendLog(store, remoteLog, zap.NewNop()),
		clock,
		zap.NewNop(),
		opts...,
	)
}

var errBoom = errors.New("boom")
