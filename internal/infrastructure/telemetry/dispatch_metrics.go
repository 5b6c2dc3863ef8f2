package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// DispatchMetrics records reminder dispatch and invoice sync activity.
type DispatchMetrics struct {
	sentTotal    *Counter
	skippedTotal *Counter
	failedTotal  *Counter
	syncedTotal  *Counter
	runDuration  *Histogram
}

// NewDispatchMetrics creates the dispatcher instruments on meter.
func NewDispatchMetrics(meter metric.Meter) (*DispatchMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	sent, err := NewCounter(meter, "dispatch_sent_total", "Reminders delivered by notification type", "{message}")
	if err != nil {
		return nil, err
	}
	skipped, err := NewCounter(meter, "dispatch_skipped_total", "Candidates skipped by reason", "{candidate}")
	if err != nil {
		return nil, err
	}
	failed, err := NewCounter(meter, "dispatch_failed_total", "Reminders that failed after retries", "{message}")
	if err != nil {
		return nil, err
	}
	synced, err := NewCounter(meter, "invoice_sync_items_total", "Invoices fetched from the billing provider", "{invoice}")
	if err != nil {
		return nil, err
	}
	runDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "dispatch_run_duration_seconds",
		Description: "Duration of dispatcher jobs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		sentTotal:    sent,
		skippedTotal: skipped,
		failedTotal:  failed,
		syncedTotal:  synced,
		runDuration:  runDuration,
	}, nil
}

// Sent counts one delivered reminder.
func (m *DispatchMetrics) Sent(ctx context.Context, notificationType string) {
	m.sentTotal.Inc(ctx, AttrNotificationType.String(notificationType))
}

// Skipped counts one skipped candidate.
func (m *DispatchMetrics) Skipped(ctx context.Context, reason string) {
	m.skippedTotal.Inc(ctx, AttrSkipReason.String(reason))
}

// Failed counts one failed reminder.
func (m *DispatchMetrics) Failed(ctx context.Context, notificationType string) {
	m.failedTotal.Inc(ctx, AttrNotificationType.String(notificationType))
}

// InvoicesSynced counts fetched invoices.
func (m *DispatchMetrics) InvoicesSynced(ctx context.Context, n int) {
	if n > 0 {
		m.syncedTotal.Add(ctx, int64(n))
	}
}

// RunFinished records a job's duration and outcome.
func (m *DispatchMetrics) RunFinished(ctx context.Context, job, outcome string, d time.Duration) {
	m.runDuration.RecordDuration(ctx, d, AttrJob.String(job), AttrOutcome.String(outcome))
}
