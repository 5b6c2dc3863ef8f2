// Package bootstrap wires configuration into a ready-to-run dispatcher.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appnotification "github.com/Projeto12026/crmcontador-sub000/internal/application/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/cache"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/persistence"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/provider"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/remote"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/storage"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

// App holds the wired dispatcher and the resources it owns
type App struct {
	Config         *config.Config
	Logger         *zap.Logger
	Database       *persistence.Database
	MeterProvider  *telemetry.MeterProvider
	TracerProvider *telemetry.TracerProvider
	Orchestrator   *appnotification.Orchestrator

	closers []func(context.Context) error
}

// Build opens the cache database, applies migrations and wires every
// collaborator of the orchestrator. Close must be called on success.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log}
	if err := app.build(ctx); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	a.MeterProvider = mp
	a.closers = append(a.closers, mp.Shutdown)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.TracingEnabled(),
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create tracer provider: %w", err)
	}
	a.TracerProvider = tp
	a.closers = append(a.closers, tp.Shutdown)

	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level),
		persistence.WithTracing(tp.IsEnabled()))
	if err != nil {
		return err
	}
	a.Database = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	if err := db.Migrate(log); err != nil {
		return fmt.Errorf("failed to migrate cache database: %w", err)
	}
	if err := telemetry.RegisterDBMetrics(db.DB, mp, log); err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	}
	store := persistence.NewCacheStore(db.DB)

	source, closeSource, err := remote.New(&cfg.Remote, log.Named("remote"))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return closeSource() })

	lock, closeLock, err := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log.Named("runlock"))).Create()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return closeLock() })

	archive, err := newArchive(ctx, &cfg.Storage, log)
	if err != nil {
		return err
	}

	var metrics appnotification.Recorder
	if mp.IsEnabled() {
		dm, err := telemetry.NewDispatchMetrics(mp.Meter("dispatcher"))
		if err != nil {
			return fmt.Errorf("failed to create dispatch metrics: %w", err)
		}
		metrics = dm
	}

	tokens := provider.NewTokenProvider(&cfg.Provider, log.Named("provider"))
	billing := provider.NewClient(cfg.Provider.APIBaseURL, tokens, log.Named("provider"))

	clock := appnotification.SystemClock(cfg.App.Location())
	retry := gateway.RetryPolicy{Attempts: cfg.Gateway.RetryAttempts, Delay: cfg.Gateway.RetryDelay}

	syncService := appnotification.NewInvoiceSyncService(billing, store, clock, log,
		appnotification.WithPagination(cfg.Provider.PageSize, cfg.Provider.MaxPages),
		appnotification.WithSyncMetrics(metrics),
	)
	resolver := appnotification.NewTemplateResolver(store, clock)
	sendLog := appnotification.NewMirroredSendLog(store, source, log)
	scheduler := appnotification.NewScheduler(store, resolver, billing, sendLog, clock, log,
		appnotification.WithPaceInterval(cfg.Gateway.PaceInterval),
		appnotification.WithRetryPolicy(retry),
		appnotification.WithArchive(archive),
		appnotification.WithSchedulerMetrics(metrics),
	)

	gatewayLog := log.Named("gateway")
	a.Orchestrator = appnotification.NewOrchestrator(appnotification.OrchestratorDeps{
		Store:     store,
		Remote:    source,
		Sync:      syncService,
		Scheduler: scheduler,
		Resolver:  resolver,
		Documents: billing,
		Messengers: func(settings gateway.Settings) appnotification.Messenger {
			return gateway.NewClient(settings, cfg.Gateway.Timeout, gatewayLog)
		},
		GatewayEnv: gateway.Settings{BaseURL: cfg.Gateway.BaseURL, Token: cfg.Gateway.Token},
		GatewayKey: cfg.Gateway.ConfigKey,
		Retry:      retry,
		Lock:       lock,
		LockTTL:    cfg.Redis.LockTTL,
		Clock:      clock,
		Metrics:    metrics,
		Logger:     log,
	})
	return nil
}

// newArchive returns the S3 archive when enabled, otherwise a no-op archive
func newArchive(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (appnotification.DocumentArchive, error) {
	if !cfg.ArchiveEnabled {
		return storage.NoopArchive{}, nil
	}
	archive, err := storage.NewS3Archive(ctx, cfg, storage.WithLogger(log.Named("archive")))
	if err != nil {
		return nil, fmt.Errorf("failed to create document archive: %w", err)
	}
	log.Info("Archiving delivered documents", zap.String("bucket", archive.Bucket()))
	return archive, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
