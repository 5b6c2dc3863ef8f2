package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/storage"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

// DefaultPaceInterval is the pause after each dispatched invoice
const DefaultPaceInterval = 2500 * time.Millisecond

// Skip reasons
const (
	SkipNotDue        = "not_due_today"
	SkipAlreadySent   = "already_sent"
	SkipEmptyTemplate = "empty_template"
)

// DispatchFailure is one reminder that could not be delivered
type DispatchFailure struct {
	CompanyID string `json:"companyId"`
	Company   string `json:"company"`
	Type      string `json:"type"`
	Error     string `json:"error"`
}

// RunResult is the outcome of one scheduler run
type RunResult struct {
	Sent    int               `json:"sent"`
	Skipped int               `json:"skipped"`
	Errors  []DispatchFailure `json:"errors"`
}

// SchedulerStore is the part of the cache the scheduler reads
type SchedulerStore interface {
	ListDispatchCandidates(ctx context.Context) ([]notification.DispatchCandidate, error)
	HasSuccessfulSend(ctx context.Context, key notification.DedupKey) (bool, error)
}

// Scheduler decides which reminders are due today and dispatches them one at a time
type Scheduler struct {
	store     SchedulerStore
	resolver  *TemplateResolver
	documents DocumentFetcher
	sendLog   SendLog
	archive   DocumentArchive
	pacer     Pacer
	pace      time.Duration
	retry     gateway.RetryPolicy
	clock     Clock
	metrics   Recorder
	logger    *zap.Logger
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithPacer shares one pacer across runs instead of building one per run
func WithPacer(p Pacer) SchedulerOption {
	return func(s *Scheduler) {
		s.pacer = p
	}
}

// WithPaceInterval sets the pause after each dispatched invoice
func WithPaceInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.pace = d
	}
}

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(p gateway.RetryPolicy) SchedulerOption {
	return func(s *Scheduler) {
		s.retry = p
	}
}

// WithArchive archives delivered documents
func WithArchive(a DocumentArchive) SchedulerOption {
	return func(s *Scheduler) {
		s.archive = a
	}
}

// WithSchedulerMetrics sets the metrics recorder
func WithSchedulerMetrics(r Recorder) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = recorderOrNoop(r)
	}
}

// NewPacer returns a limiter whose first Wait blocks one full interval.
// Waiting on it after each dispatch keeps consecutive dispatches an interval apart.
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	l.Allow()
	return l
}

// NewScheduler creates a Scheduler
func NewScheduler(store SchedulerStore, resolver *TemplateResolver, documents DocumentFetcher, sendLog SendLog, clock Clock, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		store:     store,
		resolver:  resolver,
		documents: documents,
		sendLog:   sendLog,
		archive:   storage.NoopArchive{},
		pace:      DefaultPaceInterval,
		retry:     gateway.DefaultRetryPolicy(),
		clock:     clock,
		metrics:   noopRecorder{},
		logger:    logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run evaluates every candidate invoice against today's date and dispatches due reminders.
// A failing invoice is recorded and the run moves on; only context cancellation stops it.
func (s *Scheduler) Run(ctx context.Context, messenger Messenger) (RunResult, error) {
	result := RunResult{Errors: []DispatchFailure{}}

	candidates, err := s.store.ListDispatchCandidates(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list dispatch candidates: %w", err)
	}
	today := s.clock.Today()
	pacer := s.pacer
	if pacer == nil {
		pacer = NewPacer(s.pace)
	}

	s.logger.Info("Scheduler run started",
		zap.String("today", today.Format("2006-01-02")),
		zap.Int("candidates", len(candidates)),
	)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !c.Company.HasDispatchablePhone() || c.Invoice.DueDate == nil {
			continue
		}
		if err := s.process(ctx, messenger, pacer, today, c, &result); err != nil {
			return result, err
		}
	}

	s.logger.Info("Scheduler run completed",
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// process handles one candidate. It returns an error only when the run must stop.
func (s *Scheduler) process(ctx context.Context, messenger Messenger, pacer Pacer, today time.Time, c notification.DispatchCandidate, result *RunResult) error {
	inv, company := c.Invoice, c.Company
	ctx, span := telemetry.StartSpan(ctx, "scheduler.process",
		telemetry.WithAttribute("company_id", company.ID),
		telemetry.WithAttribute("invoice_id", inv.ProviderInvoiceID),
	)
	defer span.End()

	logger := s.logger.With(
		zap.String("company_id", company.ID),
		zap.String("invoice_id", inv.ProviderInvoiceID),
	)

	rule, ok := notification.SelectRule(today, *inv.DueDate, inv.Status)
	if !ok {
		s.skip(ctx, result, SkipNotDue)
		return nil
	}
	typ := rule.Type.String()
	telemetry.SetAttribute(span, "notification_type", typ)

	key := notification.DedupKey{CompanyID: company.ID, Period: inv.Period, Type: rule.Type}
	sent, err := s.store.HasSuccessfulSend(ctx, key)
	if err != nil {
		s.fail(ctx, result, company, typ, fmt.Errorf("dedup lookup: %w", err))
		return nil
	}
	if sent {
		logger.Debug("Reminder already sent", zap.String("type", typ))
		s.skip(ctx, result, SkipAlreadySent)
		return nil
	}

	text, err := s.resolver.Resolve(ctx, rule.TemplateKey, company, &inv, inv.Period)
	if err != nil {
		s.fail(ctx, result, company, typ, err)
		return nil
	}
	if text == "" {
		logger.Warn("No active template, reminder skipped", zap.String("template", rule.TemplateKey))
		s.skip(ctx, result, SkipEmptyTemplate)
		return nil
	}

	detail, sendErr := s.dispatch(ctx, messenger, rule, company, inv, text)
	if errors.Is(sendErr, context.Canceled) {
		return sendErr
	}
	if sendErr != nil {
		detail = sendErr.Error()
	}

	invoiceID := inv.ID
	rec := notification.NewSendRecord(company.ID, &invoiceID, inv.Period, rule.Type, sendErr == nil, detail, s.clock.now().UTC())
	if err := s.sendLog.Append(ctx, rec); err != nil {
		logger.Error("Failed to append send record", zap.String("type", typ), zap.Error(err))
	}

	if sendErr != nil {
		logger.Warn("Reminder dispatch failed", zap.String("type", typ), zap.Error(sendErr))
		s.fail(ctx, result, company, typ, sendErr)
	} else {
		telemetry.SetAttribute(span, "detail", detail)
		logger.Info("Reminder sent", zap.String("type", typ), zap.String("detail", detail))
		result.Sent++
		s.metrics.Sent(ctx, typ)
	}

	// the gateway gets a quiet interval after every attempt, failed or not
	return pacer.Wait(ctx)
}

// dispatch delivers one reminder and returns the send record detail.
// Document types fall back to text when the document cannot be fetched.
func (s *Scheduler) dispatch(ctx context.Context, messenger Messenger, rule notification.Rule, company notification.Company, inv notification.Invoice, text string) (string, error) {
	detail := "text"
	if rule.AttachDocument {
		pdf, err := s.documents.FetchDocument(ctx, inv.ProviderInvoiceID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", err
			}
			s.logger.Warn("Document unavailable, sending text only",
				zap.String("company_id", company.ID),
				zap.String("invoice_id", inv.ProviderInvoiceID),
				zap.Error(err),
			)
			detail = "text; document unavailable: " + err.Error()
		} else {
			filename := DocumentFilename(inv.Period)
			sendErr := gateway.WithRetry(ctx, s.retry, func(ctx context.Context) error {
				return messenger.SendDocument(ctx, company.Phone, pdf, filename, "")
			})
			if sendErr != nil {
				return "", fmt.Errorf("send document: %w", sendErr)
			}
			detail = "document+text"
			s.archiveDocument(ctx, company.ID, inv.Period, filename, pdf)
		}
	}

	err := gateway.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		return messenger.SendText(ctx, company.Phone, text)
	})
	if err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	return detail, nil
}

func (s *Scheduler) archiveDocument(ctx context.Context, companyID string, period notification.Period, filename string, pdf []byte) {
	key, err := s.archive.Archive(ctx, storage.Document{
		CompanyID: companyID,
		Period:    period,
		Filename:  filename,
		Data:      pdf,
	})
	if err != nil {
		s.logger.Warn("Failed to archive document", zap.String("company_id", companyID), zap.Error(err))
		return
	}
	if key != "" {
		s.logger.Debug("Document archived", zap.String("key", key))
	}
}

func (s *Scheduler) skip(ctx context.Context, result *RunResult, reason string) {
	result.Skipped++
	telemetry.SetAttribute(trace.SpanFromContext(ctx), "skip_reason", reason)
	s.metrics.Skipped(ctx, reason)
}

func (s *Scheduler) fail(ctx context.Context, result *RunResult, company notification.Company, typ string, err error) {
	result.Errors = append(result.Errors, DispatchFailure{
		CompanyID: company.ID,
		Company:   company.Name,
		Type:      typ,
		Error:     err.Error(),
	})
	telemetry.RecordError(trace.SpanFromContext(ctx), err)
	s.metrics.Failed(ctx, typ)
}

// DocumentFilename names the PDF sent for a billing period
func DocumentFilename(period notification.Period) string {
	return fmt.Sprintf("boleto-%02d-%04d.pdf", period.Month, period.Year)
}
