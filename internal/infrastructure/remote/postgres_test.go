package remote

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

func newMockPostgresSource(t *testing.T) (*PostgresSource, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewPostgresSource(gormDB), mock, mockDB
}

func TestPostgresSource_FetchMirror(t *testing.T) {
	t.Run("reads every table in one transaction", func(t *testing.T) {
		src, mock, mockDB := newMockPostgresSource(t)
		defer mockDB.Close()

		due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "companies" ORDER BY name`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "cnpj", "whatsapp", "due_day", "monthly_fee", "status"}).
				AddRow("c1", "Padaria Central", "12.345.678/0001-90", "11987654321", 10, "450.00", "active"))
		mock.ExpectQuery(`SELECT \* FROM "invoices" ORDER BY due_date`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "provider_invoice_id", "company_id", "tax_id", "status", "amount", "due_date", "paid_at", "period_month", "period_year", "synced_at"}).
				AddRow("i1", "p1", "c1", "12345678000190", "OVERDUE", "450.00", due, nil, 3, 2025, nil))
		mock.ExpectQuery(`SELECT \* FROM "message_templates"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "template_key", "body", "active"}).
				AddRow("t1", "after_due", "Atraso de {{dias_atraso}} dias", true))
		mock.ExpectQuery(`SELECT \* FROM "app_config"`).
			WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))
		mock.ExpectQuery(`SELECT \* FROM "send_log" ORDER BY created_at`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "invoice_id", "period_month", "period_year", "channel", "notification_type", "success", "detail", "created_at"}).
				AddRow("s1", "c1", "i1", 3, 2025, "whatsapp", "two_days_late", true, nil, due))
		mock.ExpectCommit()

		m, err := src.FetchMirror(context.Background())
		require.NoError(t, err)

		require.Len(t, m.Companies, 1)
		assert.Equal(t, "12345678000190", m.Companies[0].TaxID)
		assert.Equal(t, int64(45000), m.Companies[0].MonthlyAmountCents)
		require.Len(t, m.Invoices, 1)
		assert.Equal(t, notification.InvoiceStatusLate, m.Invoices[0].Status)
		assert.Equal(t, due, *m.Invoices[0].DueDate)
		assert.Nil(t, m.Invoices[0].PaidAt)
		require.Len(t, m.Templates, 1)
		assert.Empty(t, m.Config)
		require.Len(t, m.SendLog, 1)
		assert.Equal(t, notification.NotificationTwoDaysLate, m.SendLog[0].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and reports the failing table", func(t *testing.T) {
		src, mock, mockDB := newMockPostgresSource(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "companies"`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := src.FetchMirror(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "companies")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSource_AppendSendRecord(t *testing.T) {
	src, mock, mockDB := newMockPostgresSource(t)
	defer mockDB.Close()

	mock.ExpectExec(`INSERT INTO "send_log"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := notification.NewSendRecord("c1", nil, notification.Period{Month: 3, Year: 2025},
		notification.NotificationDueToday, true, "", time.Now())
	require.NoError(t, src.AppendSendRecord(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}
