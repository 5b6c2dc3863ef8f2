package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

// Job names, also used as run lock names and metric labels
const (
	JobSyncClone         = "sync-clone"
	JobRunScheduledSends = "run-scheduled-sends"
	JobRunDaily          = "run-daily"
)

const (
	runLockName       = "dispatcher"
	defaultRunLockTTL = 2 * time.Hour
)

// Validation errors for the manual dispatch requests
var (
	ErrEmptyMessage = errors.New("message is required")
	ErrNoPhone      = errors.New("company has no dispatchable phone number")
)

// StepError reports which step of a composite job failed
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// MessengerFactory builds a gateway client for resolved settings
type MessengerFactory func(settings gateway.Settings) Messenger

// CloneResult reports the rows pulled from the system of record
type CloneResult struct {
	Counts          notification.MirrorCounts `json:"counts"`
	InvoiceErrors   []string                  `json:"invoiceErrors,omitempty"`
	RemirroredSends int                       `json:"remirroredSends,omitempty"`
}

// SendsResult is the outcome of run-scheduled-sends
type SendsResult struct {
	Sync SyncResult `json:"sync"`
	RunResult
}

// DailyResult is the outcome of run-daily
type DailyResult struct {
	Clone CloneResult `json:"clone"`
	Sends SendsResult `json:"sends"`
}

// BoletoRequest asks for a document and a message to be delivered to one company
type BoletoRequest struct {
	CompanyID         string
	Period            notification.Period
	ProviderInvoiceID string
	Message           string
	Gateway           *gateway.Settings
}

// BoletoResult reports what was delivered
type BoletoResult struct {
	PDFSent     bool `json:"pdfSent"`
	MessageSent bool `json:"messageSent"`
}

// ReminderRequest asks for a text message to be delivered to one company
type ReminderRequest struct {
	CompanyID string
	Message   string
	Gateway   *gateway.Settings
}

// ReminderResult reports whether the message was delivered
type ReminderResult struct {
	MessageSent bool `json:"messageSent"`
}

// OrchestratorDeps holds the collaborators of an Orchestrator
type OrchestratorDeps struct {
	Store      CacheStore
	Remote     RemoteSource
	Sync       *InvoiceSyncService
	Scheduler  *Scheduler
	Resolver   *TemplateResolver
	Documents  DocumentFetcher
	Messengers MessengerFactory
	GatewayEnv gateway.Settings
	GatewayKey string
	Retry      gateway.RetryPolicy
	Lock       notification.RunLock
	LockTTL    time.Duration
	Clock      Clock
	Metrics    Recorder
	Logger     *zap.Logger
}

// Orchestrator runs the dispatcher jobs
type Orchestrator struct {
	store      CacheStore
	remote     RemoteSource
	sync       *InvoiceSyncService
	scheduler  *Scheduler
	resolver   *TemplateResolver
	documents  DocumentFetcher
	messengers MessengerFactory
	gatewayEnv gateway.Settings
	gatewayKey string
	retry      gateway.RetryPolicy
	lock       notification.RunLock
	lockTTL    time.Duration
	clock      Clock
	metrics    Recorder
	logger     *zap.Logger
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	base := deps.Logger
	if base == nil {
		base = zap.NewNop()
	}
	key := deps.GatewayKey
	if key == "" {
		key = notification.GatewayConfigKey
	}
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = defaultRunLockTTL
	}
	retry := deps.Retry
	if retry.Attempts == 0 {
		retry = gateway.DefaultRetryPolicy()
	}
	return &Orchestrator{
		store:      deps.Store,
		remote:     deps.Remote,
		sync:       deps.Sync,
		scheduler:  deps.Scheduler,
		resolver:   deps.Resolver,
		documents:  deps.Documents,
		messengers: deps.Messengers,
		gatewayEnv: deps.GatewayEnv,
		gatewayKey: key,
		retry:      retry,
		lock:       deps.Lock,
		lockTTL:    ttl,
		clock:      deps.Clock,
		metrics:    recorderOrNoop(deps.Metrics),
		logger:     base.Named("orchestrator"),
	}
}

// CloneSync replaces the cache with a fresh snapshot of the system of record
func (o *Orchestrator) CloneSync(ctx context.Context) (CloneResult, error) {
	var result CloneResult
	err := o.locked(ctx, JobSyncClone, func(ctx context.Context) error {
		var err error
		result, err = o.cloneSync(ctx)
		return err
	})
	return result, err
}

// RunScheduledSends syncs invoices for the current and next period, then dispatches due reminders.
// override replaces the stored gateway settings when it is complete.
func (o *Orchestrator) RunScheduledSends(ctx context.Context, override *gateway.Settings) (SendsResult, error) {
	var result SendsResult
	err := o.locked(ctx, JobRunScheduledSends, func(ctx context.Context) error {
		var err error
		result, err = o.runScheduledSends(ctx, override)
		return err
	})
	return result, err
}

// RunDaily runs sync-clone then run-scheduled-sends, stopping at the first failing step
func (o *Orchestrator) RunDaily(ctx context.Context, override *gateway.Settings) (DailyResult, error) {
	var result DailyResult
	err := o.locked(ctx, JobRunDaily, func(ctx context.Context) error {
		clone, err := o.cloneSync(ctx)
		result.Clone = clone
		if err != nil {
			return &StepError{Step: JobSyncClone, Err: err}
		}
		sends, err := o.runScheduledSends(ctx, override)
		result.Sends = sends
		if err != nil {
			return &StepError{Step: JobRunScheduledSends, Err: err}
		}
		return nil
	})
	return result, err
}

func (o *Orchestrator) locked(ctx context.Context, job string, fn func(context.Context) error) error {
	start := time.Now()
	if o.lock != nil {
		release, err := o.lock.TryAcquire(ctx, runLockName, o.lockTTL)
		if err != nil {
			o.logger.Warn("Job rejected, run lock held", zap.String("job", job), zap.Error(err))
			return err
		}
		defer func() {
			// release even when ctx is already cancelled
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("Failed to release run lock", zap.String("job", job), zap.Error(err))
			}
		}()
	}

	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, "job."+job, telemetry.WithAttribute("run_id", runID))
	ctx, runLogger := logger.WithRunID(ctx, o.logger, runID, job)
	runLogger.Info("Job started")
	err := fn(ctx)
	telemetry.EndSpan(span, err)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		runLogger.Error("Job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
	} else {
		runLogger.Info("Job completed", zap.Duration("duration", time.Since(start)))
	}
	o.metrics.RunFinished(ctx, job, outcome, time.Since(start))
	return err
}

func (o *Orchestrator) cloneSync(ctx context.Context) (CloneResult, error) {
	var result CloneResult
	mirror, err := o.remote.FetchMirror(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch mirror: %w", err)
	}
	result.RemirroredSends = o.remirrorLocalSends(ctx, mirror.SendLog)
	if err := o.store.ReplaceMirror(ctx, mirror); err != nil {
		return result, fmt.Errorf("failed to replace cache: %w", err)
	}
	upserted, err := o.store.UpsertInvoices(ctx, mirror.Invoices)
	if err != nil {
		return result, fmt.Errorf("failed to upsert invoices: %w", err)
	}
	for _, f := range upserted.Failed {
		result.InvoiceErrors = append(result.InvoiceErrors, fmt.Sprintf("invoice %s: %v", f.ProviderInvoiceID, f.Err))
	}

	result.Counts = notification.MirrorCounts{
		Companies: len(mirror.Companies),
		Invoices:  upserted.Upserted,
		Templates: len(mirror.Templates),
		Config:    len(mirror.Config),
		SendLog:   len(mirror.SendLog),
	}
	o.logger.Info("Cache replaced from system of record",
		zap.Int("companies", result.Counts.Companies),
		zap.Int("invoices", result.Counts.Invoices),
		zap.Int("templates", result.Counts.Templates),
		zap.Int("config", result.Counts.Config),
		zap.Int("send_log", result.Counts.SendLog),
	)
	return result, nil
}

// remirrorLocalSends pushes local successes the system of record is missing.
// Failures are logged; the cache replace keeps those rows for the next clone.
func (o *Orchestrator) remirrorLocalSends(ctx context.Context, remote []notification.SendRecord) int {
	local, err := o.store.ListSuccessfulSends(ctx)
	if err != nil {
		o.logger.Warn("Failed to list local sends", zap.Error(err))
		return 0
	}
	known := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		known[r.ID] = struct{}{}
	}

	pushed := 0
	for _, rec := range local {
		if _, ok := known[rec.ID]; ok {
			continue
		}
		if err := o.remote.AppendSendRecord(ctx, rec); err != nil {
			o.logger.Warn("Failed to re-mirror send record",
				zap.String("send_record_id", rec.ID),
				zap.String("company_id", rec.CompanyID),
				zap.Error(err),
			)
			continue
		}
		pushed++
	}
	if pushed > 0 {
		o.logger.Info("Re-mirrored local send records", zap.Int("count", pushed))
	}
	return pushed
}

func (o *Orchestrator) runScheduledSends(ctx context.Context, override *gateway.Settings) (SendsResult, error) {
	result := SendsResult{RunResult: RunResult{Errors: []DispatchFailure{}}}

	messenger, err := o.messenger(ctx, override)
	if err != nil {
		return result, err
	}

	syncResult, err := o.sync.SyncWindow(ctx)
	result.Sync = syncResult
	if err != nil {
		return result, fmt.Errorf("invoice sync: %w", err)
	}

	run, err := o.scheduler.Run(ctx, messenger)
	result.RunResult = run
	if err != nil {
		return result, fmt.Errorf("scheduler: %w", err)
	}
	return result, nil
}

// messenger resolves the gateway settings for a run and builds a client
func (o *Orchestrator) messenger(ctx context.Context, override *gateway.Settings) (Messenger, error) {
	stored, _, err := o.store.ConfigValue(ctx, o.gatewayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway config: %w", err)
	}
	settings, err := gateway.ResolveSettings(override, stored, o.gatewayEnv)
	if err != nil {
		return nil, err
	}
	return o.messengers(settings), nil
}

// ProcessBoletoComplete sends an invoice's document, best effort, then the message
func (o *Orchestrator) ProcessBoletoComplete(ctx context.Context, req BoletoRequest) (BoletoResult, error) {
	var result BoletoResult
	if strings.TrimSpace(req.Message) == "" {
		return result, ErrEmptyMessage
	}
	if err := req.Period.Validate(); err != nil {
		return result, err
	}
	company, err := o.dispatchableCompany(ctx, req.CompanyID)
	if err != nil {
		return result, err
	}
	messenger, err := o.messenger(ctx, req.Gateway)
	if err != nil {
		return result, err
	}

	logger := o.logger.With(zap.String("company_id", company.ID), zap.String("period", req.Period.String()))
	invoice := o.periodInvoice(ctx, company.ID, req.Period, req.ProviderInvoiceID)

	providerID := req.ProviderInvoiceID
	if providerID == "" && invoice != nil {
		providerID = invoice.ProviderInvoiceID
	}
	if providerID != "" {
		result.PDFSent = o.sendDocument(ctx, messenger, company, req.Period, providerID, logger)
	} else {
		logger.Info("No invoice for period, sending message only")
	}

	text := o.resolver.Render(req.Message, *company, invoice, req.Period)
	err = gateway.WithRetry(ctx, o.retry, func(ctx context.Context) error {
		return messenger.SendText(ctx, company.Phone, text)
	})
	if err != nil {
		return result, fmt.Errorf("send text: %w", err)
	}
	result.MessageSent = true
	return result, nil
}

// SendReminder sends a text message to one company
func (o *Orchestrator) SendReminder(ctx context.Context, req ReminderRequest) (ReminderResult, error) {
	var result ReminderResult
	if strings.TrimSpace(req.Message) == "" {
		return result, ErrEmptyMessage
	}
	company, err := o.dispatchableCompany(ctx, req.CompanyID)
	if err != nil {
		return result, err
	}
	messenger, err := o.messenger(ctx, req.Gateway)
	if err != nil {
		return result, err
	}

	period := notification.PeriodOf(o.clock.Today())
	invoice := o.periodInvoice(ctx, company.ID, period, "")
	text := o.resolver.Render(req.Message, *company, invoice, period)
	err = gateway.WithRetry(ctx, o.retry, func(ctx context.Context) error {
		return messenger.SendText(ctx, company.Phone, text)
	})
	if err != nil {
		return result, fmt.Errorf("send text: %w", err)
	}
	result.MessageSent = true
	return result, nil
}

func (o *Orchestrator) dispatchableCompany(ctx context.Context, id string) (*notification.Company, error) {
	company, err := o.store.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if !company.HasDispatchablePhone() {
		return nil, ErrNoPhone
	}
	return company, nil
}

// periodInvoice looks up the invoice a manual message refers to; nil when unknown
func (o *Orchestrator) periodInvoice(ctx context.Context, companyID string, period notification.Period, providerID string) *notification.Invoice {
	var (
		inv *notification.Invoice
		err error
	)
	if providerID != "" {
		inv, err = o.store.FindInvoiceByProviderID(ctx, providerID)
	} else {
		inv, err = o.store.FindInvoiceForPeriod(ctx, companyID, period)
	}
	if err != nil {
		if !errors.Is(err, notification.ErrInvoiceNotFound) {
			o.logger.Warn("Invoice lookup failed", zap.String("company_id", companyID), zap.Error(err))
		}
		return nil
	}
	return inv
}

func (o *Orchestrator) sendDocument(ctx context.Context, messenger Messenger, company *notification.Company, period notification.Period, providerID string, logger *zap.Logger) bool {
	pdf, err := o.documents.FetchDocument(ctx, providerID)
	if err != nil {
		logger.Warn("Document unavailable", zap.String("invoice_id", providerID), zap.Error(err))
		return false
	}
	err = gateway.WithRetry(ctx, o.retry, func(ctx context.Context) error {
		return messenger.SendDocument(ctx, company.Phone, pdf, DocumentFilename(period), "")
	})
	if err != nil {
		logger.Warn("Document dispatch failed", zap.String("invoice_id", providerID), zap.Error(err))
		return false
	}
	return true
}
