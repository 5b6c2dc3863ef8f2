package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/migration"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the local cache connection
type Database struct {
	DB *gorm.DB
}

type databaseOptions struct {
	tracing bool
}

// DatabaseOption configures NewDatabase
type DatabaseOption func(*databaseOptions)

// WithTracing registers otelgorm so every cache query gets a client span.
// Query variables are left out of the recorded statements.
func WithTracing(enabled bool) DatabaseOption {
	return func(o *databaseOptions) {
		o.tracing = enabled
	}
}

// NewDatabase opens the sqlite cache at cfg.Path, creating its directory when needed
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger, logLevel gormlogger.LogLevel, opts ...DatabaseOption) (*Database, error) {
	var options databaseOptions
	for _, opt := range opts {
		opt(&options)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, logLevel, 200*time.Millisecond),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if options.tracing {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName("sqlite"), otelgorm.WithoutQueryVariables())); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// sqlite allows one writer at a time
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Migrate applies the embedded cache schema
func (d *Database) Migrate(zapLogger *zap.Logger) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	m, err := migration.New(sqlDB, zapLogger.Named("migrate"))
	if err != nil {
		return err
	}
	return m.Up()
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

