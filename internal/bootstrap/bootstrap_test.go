package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/remote"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "dispatcher", Env: "test", Timezone: "America/Sao_Paulo"},
		Log: config.LogConfig{Level: "error"},
		Database: config.DatabaseConfig{
			Path:            filepath.Join(t.TempDir(), "cache.db"),
			BusyTimeout:     time.Second,
			MaxOpenConns:    1,
			ConnMaxLifetime: 60,
		},
		Provider: config.ProviderConfig{APIBaseURL: "https://provider.invalid", PageSize: 200, MaxPages: 50},
		Gateway:  config.GatewayConfig{RetryAttempts: 3, RetryDelay: time.Millisecond, PaceInterval: time.Millisecond},
		Remote:   config.RemoteConfig{Driver: remote.DriverNone},
	}
}

func TestBuild_WiresDispatcherWithLocalDefaults(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, app.Orchestrator)
	assert.NotNil(t, app.Database)
	assert.False(t, app.MeterProvider.IsEnabled())
	assert.False(t, app.TracerProvider.IsEnabled())
	require.NoError(t, app.Database.Ping())

	// the cache schema is in place
	assert.True(t, app.Database.DB.Migrator().HasTable("companies"))

	// without a system of record the clone fails and leaves the cache alone
	_, err = app.Orchestrator.CloneSync(context.Background())
	assert.ErrorIs(t, err, remote.ErrSourceDisabled)

	require.NoError(t, app.Close(context.Background()))
	assert.Error(t, app.Database.Ping(), "database is closed")
}

func TestBuild_RejectsUnknownRemoteDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Driver = "mongodb"

	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.driver")
}
