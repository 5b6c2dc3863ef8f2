package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/bootstrap"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/scheduler"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting invoice dispatcher",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.App.Location().String()),
	)

	app, err := bootstrap.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to wire dispatcher", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(ctx); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()

	engine := router.NewEngine(router.EngineConfig{
		Jobs:          app.Orchestrator,
		DB:            app.Database,
		CronSecret:    cfg.Jobs.CronSecret,
		RunTimeout:    cfg.Jobs.RunTimeout,
		MaxBodyBytes:  cfg.HTTP.MaxBodySize,
		MeterProvider: app.MeterProvider,
		Tracing:       app.TracerProvider.IsEnabled(),
		ServiceName:   cfg.Telemetry.ServiceName,
		Logger:        log,
	})
	if cfg.Jobs.CronSecret == "" {
		log.Warn("Job endpoints are not protected, set CRM_JOBS_CRON_SECRET")
	}

	var cron *scheduler.CronTrigger
	if cfg.Jobs.DailyEnabled {
		cron, err = scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			Hour:          cfg.Jobs.DailyHour,
			Minute:        cfg.Jobs.DailyMinute,
			CheckInterval: cfg.Jobs.CheckInterval,
			RunTimeout:    cfg.Jobs.RunTimeout,
			Location:      cfg.App.Location(),
		}, func(ctx context.Context) error {
			_, err := app.Orchestrator.RunDaily(ctx, nil)
			return err
		}, log)
		if err != nil {
			log.Fatal("Failed to create daily trigger", zap.Error(err))
		}
		if err := cron.Start(context.Background()); err != nil {
			log.Fatal("Failed to start daily trigger", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cron != nil {
		if err := cron.Stop(ctx); err != nil {
			log.Warn("Daily trigger did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
