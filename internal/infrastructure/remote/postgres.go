package remote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
)

// PostgresSource reads the system of record directly from its Postgres database
type PostgresSource struct {
	db *gorm.DB
}

// NewPostgresSource wraps an open connection
func NewPostgresSource(db *gorm.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgresSource connects to dsn
func OpenPostgresSource(dsn string, zapLogger *zap.Logger) (*PostgresSource, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger.Named("remote.postgres"), gormlogger.Warn, 500*time.Millisecond),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("remote: connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("remote: get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return NewPostgresSource(db), nil
}

// Close closes the underlying connection pool
func (s *PostgresSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FetchMirror reads all five tables in one read-only snapshot
func (s *PostgresSource) FetchMirror(ctx context.Context) (notification.Mirror, error) {
	var (
		companies []companyRow
		invoices  []invoiceRow
		templates []templateRow
		cfg       []configRow
		sendLog   []sendRecordRow
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("name").Find(&companies).Error; err != nil {
			return fmt.Errorf("read %s: %w", TableCompanies, err)
		}
		if err := tx.Order("due_date").Find(&invoices).Error; err != nil {
			return fmt.Errorf("read %s: %w", TableInvoices, err)
		}
		if err := tx.Find(&templates).Error; err != nil {
			return fmt.Errorf("read %s: %w", TableTemplates, err)
		}
		if err := tx.Find(&cfg).Error; err != nil {
			return fmt.Errorf("read %s: %w", TableConfig, err)
		}
		if err := tx.Order("created_at").Find(&sendLog).Error; err != nil {
			return fmt.Errorf("read %s: %w", TableSendLog, err)
		}
		return nil
	})
	if err != nil {
		return notification.Mirror{}, fmt.Errorf("remote: %w", err)
	}

	return notification.Mirror{
		Companies: mapRows(companies, companyRow.toDomain),
		Invoices:  mapRows(invoices, invoiceRow.toDomain),
		Templates: mapRows(templates, templateRow.toDomain),
		Config:    mapRows(cfg, configRow.toDomain),
		SendLog:   mapRows(sendLog, sendRecordRow.toDomain),
	}, nil
}

// AppendSendRecord inserts one send log row
func (s *PostgresSource) AppendSendRecord(ctx context.Context, rec notification.SendRecord) error {
	row := sendRecordRowFromDomain(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("remote: append send record: %w", err)
	}
	return nil
}
