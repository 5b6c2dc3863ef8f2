package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

func TestNewDatabase_CreatesCacheDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "cache.db")
	db, err := NewDatabase(&config.DatabaseConfig{
		Path:         path,
		BusyTimeout:  time.Second,
		MaxOpenConns: 1,
	}, zap.NewNop(), gormlogger.Silent)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)
	require.NoError(t, db.Ping())

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDatabase_MigrateIsIdempotent(t *testing.T) {
	_, db := newTestStore(t)

	// a second run finds nothing to apply
	require.NoError(t, db.Migrate(zap.NewNop()))

	for _, table := range []string{"companies", "invoices", "message_templates", "app_config", "send_log"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
}

func TestDatabase_PingAfterClose(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "cache.db"),
		MaxOpenConns: 1,
	}, zap.NewNop(), gormlogger.Silent)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping())
}

func TestNewDatabase_WithTracing(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	recorder := tracetest.NewSpanRecorder()
	tp := telemetry.NewTracerProviderWithProcessor(recorder, zap.NewNop())
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db, err := NewDatabase(&config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "cache.db"),
		MaxOpenConns: 1,
	}, zap.NewNop(), gormlogger.Silent, WithTracing(true))
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.DB.WithContext(context.Background()).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, trace.SpanKindClient, spans[len(spans)-1].SpanKind())
}
