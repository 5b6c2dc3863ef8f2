package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/provider"
)

// Pagination defaults
const (
	DefaultPageSize = 200
	DefaultMaxPages = 50
)

// InvoiceStore is the part of the cache the invoice sync writes to
type InvoiceStore interface {
	ListCompanies(ctx context.Context, activeOnly bool) ([]notification.Company, error)
	UpsertInvoices(ctx context.Context, invoices []notification.Invoice) (notification.UpsertResult, error)
}

// SyncResult summarizes an invoice sync.
// Errors lists pages and rows that were skipped; the rest was still stored.
type SyncResult struct {
	Fetched   int      `json:"fetched"`
	Upserted  int      `json:"upserted"`
	Unmatched int      `json:"unmatched"`
	Pages     int      `json:"pages"`
	Partial   bool     `json:"partial"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *SyncResult) add(other SyncResult) {
	r.Fetched += other.Fetched
	r.Upserted += other.Upserted
	r.Unmatched += other.Unmatched
	r.Pages += other.Pages
	r.Partial = r.Partial || other.Partial
	r.Errors = append(r.Errors, other.Errors...)
}

// InvoiceSyncService pulls invoices from the billing provider into the cache
type InvoiceSyncService struct {
	source   InvoiceSearcher
	store    InvoiceStore
	clock    Clock
	pageSize int
	maxPages int
	metrics  Recorder
	logger   *zap.Logger
}

// InvoiceSyncOption configures an InvoiceSyncService
type InvoiceSyncOption func(*InvoiceSyncService)

// WithPagination overrides page size and the page ceiling
func WithPagination(pageSize, maxPages int) InvoiceSyncOption {
	return func(s *InvoiceSyncService) {
		if pageSize > 0 {
			s.pageSize = pageSize
		}
		if maxPages > 0 {
			s.maxPages = maxPages
		}
	}
}

// WithSyncMetrics sets the metrics recorder
func WithSyncMetrics(r Recorder) InvoiceSyncOption {
	return func(s *InvoiceSyncService) {
		s.metrics = recorderOrNoop(r)
	}
}

// NewInvoiceSyncService creates an InvoiceSyncService
func NewInvoiceSyncService(source InvoiceSearcher, store InvoiceStore, clock Clock, logger *zap.Logger, opts ...InvoiceSyncOption) *InvoiceSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InvoiceSyncService{
		source:   source,
		store:    store,
		clock:    clock,
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
		metrics:  noopRecorder{},
		logger:   logger.Named("invoice_sync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncWindow syncs the current and the next billing period
func (s *InvoiceSyncService) SyncWindow(ctx context.Context) (SyncResult, error) {
	current := notification.PeriodOf(s.clock.Today())
	var total SyncResult
	for _, p := range []notification.Period{current, current.Next()} {
		res, err := s.SyncInvoices(ctx, p.Start(time.UTC), p.End(time.UTC))
		total.add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SyncInvoices fetches invoices due between from and to and upserts them.
// Page failures keep what was fetched so far; token failures abort.
func (s *InvoiceSyncService) SyncInvoices(ctx context.Context, from, to time.Time) (SyncResult, error) {
	var result SyncResult

	companies, err := s.store.ListCompanies(ctx, false)
	if err != nil {
		return result, fmt.Errorf("failed to load companies: %w", err)
	}
	index := notification.NewCompanyIndex(companies)

	items, pageErr := s.fetchAll(ctx, from, to, &result)
	if pageErr != nil {
		if notification.IsRunFatal(pageErr) || errors.Is(pageErr, context.Canceled) || errors.Is(pageErr, context.DeadlineExceeded) {
			return result, pageErr
		}
		result.Partial = true
		result.Errors = append(result.Errors, pageErr.Error())
		s.logger.Warn("Invoice sync stopped early, keeping fetched pages",
			zap.Int("fetched", len(items)),
			zap.Error(pageErr),
		)
	}

	fallback := notification.PeriodOf(from)
	syncedAt := s.clock.now().UTC()
	invoices := make([]notification.Invoice, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			result.Errors = append(result.Errors, "invoice without id skipped")
			continue
		}
		inv := normalizeInvoice(item, index, fallback, syncedAt)
		if inv.CompanyID == nil {
			result.Unmatched++
		}
		invoices = append(invoices, inv)
	}
	result.Fetched = len(items)
	s.metrics.InvoicesSynced(ctx, len(items))

	if len(invoices) > 0 {
		upserted, err := s.store.UpsertInvoices(ctx, invoices)
		if err != nil {
			return result, fmt.Errorf("failed to store invoices: %w", err)
		}
		result.Upserted = upserted.Upserted
		for _, f := range upserted.Failed {
			result.Errors = append(result.Errors, fmt.Sprintf("invoice %s: %v", f.ProviderInvoiceID, f.Err))
		}
	}

	s.logger.Info("Invoice sync completed",
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")),
		zap.Int("pages", result.Pages),
		zap.Int("fetched", result.Fetched),
		zap.Int("upserted", result.Upserted),
		zap.Int("unmatched", result.Unmatched),
		zap.Bool("partial", result.Partial),
	)
	return result, nil
}

// fetchAll walks the pages until one of the exit conditions holds:
// an empty page, the reported total reached, a failed page, or the page ceiling.
func (s *InvoiceSyncService) fetchAll(ctx context.Context, from, to time.Time, result *SyncResult) ([]provider.RemoteInvoice, error) {
	var items []provider.RemoteInvoice
	for page := 1; page <= s.maxPages; page++ {
		resp, err := s.source.SearchInvoices(ctx, provider.SearchQuery{
			From:     from,
			To:       to,
			Page:     page,
			PageSize: s.pageSize,
		})
		if err != nil {
			if notification.IsRunFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return items, err
			}
			syncErr := &notification.SyncError{Page: page, Err: err}
			var statusErr *provider.StatusError
			if errors.As(err, &statusErr) {
				syncErr.StatusCode = statusErr.StatusCode
			}
			return items, syncErr
		}
		result.Pages++

		if len(resp.Items) == 0 {
			return items, nil
		}
		items = append(items, resp.Items...)
		if resp.Total > 0 && len(items) >= resp.Total {
			return items, nil
		}
	}

	s.logger.Warn("Invoice sync hit the page ceiling",
		zap.Int("max_pages", s.maxPages),
		zap.Int("fetched", len(items)),
	)
	return items, nil
}

func normalizeInvoice(item provider.RemoteInvoice, index *notification.CompanyIndex, fallback notification.Period, syncedAt time.Time) notification.Invoice {
	taxID := notification.NormalizeTaxID(item.PayerTaxID())
	due := provider.ParseDate(item.DueDate)
	period := fallback
	if due != nil {
		period = notification.PeriodOf(*due)
	}
	return notification.Invoice{
		ProviderInvoiceID: item.ID,
		CompanyID:         index.Lookup(taxID),
		TaxID:             taxID,
		Status:            notification.ParseInvoiceStatus(item.Status),
		AmountCents:       notification.CentsFromDecimal(item.AmountValue()),
		DueDate:           due,
		PaidAt:            provider.ParseDate(item.PaidAt),
		Period:            period,
		SyncedAt:          syncedAt,
	}
}
