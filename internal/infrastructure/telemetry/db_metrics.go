package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records cache store query counts and latency.
type DBMetrics struct {
	queryTotal    *Counter
	queryDuration *Histogram
}

// NewDBMetrics creates the database instruments on meter.
func NewDBMetrics(meter metric.Meter) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	queryTotal, err := NewCounter(meter, "cache_db_query_total", "Cache store queries by operation and table", "{query}")
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "cache_db_query_duration_seconds",
		Description: "Cache store query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &DBMetrics{queryTotal: queryTotal, queryDuration: queryDuration}, nil
}

// RecordQuery records one finished query.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "OTHER"
	}
	if table == "" {
		table = "unknown"
	}
	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation), AttrDBTable.String(table))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))
}

// DBMetricsPlugin is a GORM plugin feeding DBMetrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates the plugin.
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

type dbMetricsContextKey struct{}

// Initialize registers before/after callbacks on every processor.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, dbMetricsContextKey{}, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			ctx := db.Statement.Context
			if ctx == nil {
				return
			}
			start, ok := ctx.Value(dbMetricsContextKey{}).(time.Time)
			if !ok {
				return
			}
			op := operation
			if op == "" {
				op = detectOperationType(db.Statement.SQL.String())
			}
			p.metrics.RecordQuery(ctx, op, db.Statement.Table, time.Since(start))
		}
	}

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("db_metrics:before_create", before); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("db_metrics:before_query", before); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("db_metrics:before_update", before); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", before); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("db_metrics:before_row", before); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", before); err != nil {
		return err
	}

	if err := cb.Create().After("gorm:create").Register("db_metrics:after_create", after("INSERT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("db_metrics:after_query", after("SELECT")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("db_metrics:after_update", after("UPDATE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", after("DELETE")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("db_metrics:after_row", after("")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", after("")); err != nil {
		return err
	}
	return nil
}

// RegisterDBMetrics installs the plugin on db when the provider is enabled.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, logger *zap.Logger) error {
	if mp == nil || !mp.IsEnabled() {
		return nil
	}
	metrics, err := NewDBMetrics(mp.Meter("cache.db"))
	if err != nil {
		return err
	}
	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("Cache store metrics registered")
	}
	return nil
}

func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
