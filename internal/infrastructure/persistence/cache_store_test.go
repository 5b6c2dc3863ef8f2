package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) (*CacheStore, *Database) {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "cache.db"),
		BusyTimeout:     time.Second,
		MaxOpenConns:    1,
		ConnMaxLifetime: 60,
	}
	db, err := NewDatabase(cfg, zap.NewNop(), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(zap.NewNop()))
	return NewCacheStore(db.DB), db
}

func strPtr(s string) *string { return &s }

func dueOn(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func seedMirror() notification.Mirror {
	return notification.Mirror{
		Companies: []notification.Company{
			{ID: "c1", Name: "Padaria Central", TaxID: "12.345.678/0001-90", Phone: "11987654321", DueDay: 10, MonthlyAmountCents: 45000, Active: true},
			{ID: "c2", Name: "Oficina Dois", TaxID: "98765432000110", Phone: "119", DueDay: 5, Active: true},
		},
		Templates: []notification.Template{
			{ID: "t1", Key: notification.TemplateBeforeDue, Body: "Olá {{empresa}}", Active: true},
			{ID: "t2", Key: notification.TemplateAfterDue, Body: "Atraso {{dias_atraso}}", Active: false},
		},
		Config: []notification.ConfigEntry{
			{Key: notification.GatewayConfigKey, Value: `{"baseUrl":"https://gw","token":"tok"}`},
		},
		SendLog: []notification.SendRecord{
			{ID: "s1", CompanyID: "c1", Period: notification.Period{Month: 2, Year: 2025}, Channel: notification.ChannelWhatsApp,
				Type: notification.NotificationDueToday, Success: true, CreatedAt: time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)},
		},
	}
}

func TestCacheStore_ReplaceMirror(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.ReplaceMirror(ctx, seedMirror()))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, notification.MirrorCounts{Companies: 2, Templates: 2, Config: 1, SendLog: 1}, counts)

	company, err := store.GetCompany(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "12345678000190", company.TaxID, "tax id is stored digits-only")
	assert.True(t, company.Active)

	t.Run("second replace drops rows missing from the new snapshot", func(t *testing.T) {
		m := seedMirror()
		m.Companies = m.Companies[:1]
		m.Config = nil
		require.NoError(t, store.ReplaceMirror(ctx, m))

		counts, err := store.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Companies)
		assert.Equal(t, 0, counts.Config)
		assert.Equal(t, 1, counts.SendLog)

		_, err = store.GetCompany(ctx, "c2")
		assert.ErrorIs(t, err, notification.ErrCompanyNotFound)
	})
}

func TestCacheStore_ReplaceMirror_KeepsLocalSuccesses(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.ReplaceMirror(ctx, seedMirror()))

	march := notification.Period{Month: 3, Year: 2025}
	sentAt := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendSendRecord(ctx, notification.SendRecord{
		ID: "local-ok", CompanyID: "c1", Period: march, Channel: notification.ChannelWhatsApp,
		Type: notification.NotificationFiveDaysBefore, Success: true, CreatedAt: sentAt,
	}))
	require.NoError(t, store.AppendSendRecord(ctx, notification.SendRecord{
		ID: "local-failed", CompanyID: "c2", Period: march, Channel: notification.ChannelWhatsApp,
		Type: notification.NotificationFiveDaysBefore, Success: false, Detail: "disconnected", CreatedAt: sentAt,
	}))

	// the remote snapshot carries neither local record
	m := seedMirror()
	m.SendLog = append(m.SendLog, notification.SendRecord{
		ID: "s2", CompanyID: "c2", Period: march, Channel: notification.ChannelWhatsApp,
		Type: notification.NotificationTwoDaysLate, Success: false, CreatedAt: sentAt,
	})
	require.NoError(t, store.ReplaceMirror(ctx, m))

	records, err := store.ListSendRecords(ctx, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(records))
	var localOK notification.SendRecord
	for _, r := range records {
		ids = append(ids, r.ID)
		if r.ID == "local-ok" {
			localOK = r
		}
	}
	assert.ElementsMatch(t, []string{"s1", "s2", "local-ok"}, ids)

	sent, err := store.HasSuccessfulSend(ctx, notification.DedupKey{CompanyID: "c1", Period: march, Type: notification.NotificationFiveDaysBefore})
	require.NoError(t, err)
	assert.True(t, sent, "dedup ledger still holds the local success")

	t.Run("snapshot copy of a local success is not duplicated", func(t *testing.T) {
		m := seedMirror()
		m.SendLog = append(m.SendLog, localOK)
		require.NoError(t, store.ReplaceMirror(ctx, m))

		counts, err := store.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts.SendLog)
	})

	successes, err := store.ListSuccessfulSends(ctx)
	require.NoError(t, err)
	require.Len(t, successes, 2)
	assert.Equal(t, "s1", successes[0].ID)
	assert.Equal(t, "local-ok", successes[1].ID)
}

func TestCacheStore_ReplaceMirror_IsAtomic(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.ReplaceMirror(ctx, seedMirror()))
	_, err := store.UpsertInvoices(ctx, []notification.Invoice{
		{ProviderInvoiceID: "p1", CompanyID: strPtr("c1"), Status: notification.InvoiceStatusOpen,
			DueDate: dueOn(2025, 3, 10), Period: notification.Period{Month: 3, Year: 2025}, SyncedAt: time.Now()},
	})
	require.NoError(t, err)

	before, err := store.Counts(ctx)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(m *notification.Mirror)
	}{
		{"duplicate company id", func(m *notification.Mirror) {
			m.Companies = append(m.Companies, notification.Company{ID: "c9", Name: "A"}, notification.Company{ID: "c9", Name: "B"})
		}},
		{"duplicate config key after companies were replaced", func(m *notification.Mirror) {
			m.Companies = []notification.Company{{ID: "new", Name: "Nova"}}
			m.Config = append(m.Config, m.Config[0])
		}},
		{"duplicate send record in the last table", func(m *notification.Mirror) {
			m.Companies = []notification.Company{{ID: "new", Name: "Nova"}}
			m.Templates = nil
			m.SendLog = append(m.SendLog, m.SendLog[0])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seedMirror()
			tt.mutate(&m)

			err := store.ReplaceMirror(ctx, m)
			require.Error(t, err)

			after, err := store.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			companies, err := store.ListCompanies(ctx, false)
			require.NoError(t, err)
			require.Len(t, companies, 2)
			assert.Equal(t, "c2", companies[0].ID)
			assert.Equal(t, "c1", companies[1].ID)

			tpl, err := store.ActiveTemplate(ctx, notification.TemplateBeforeDue)
			require.NoError(t, err)
			require.NotNil(t, tpl)

			sent, err := store.HasSuccessfulSend(ctx, notification.DedupKey{
				CompanyID: "c1", Period: notification.Period{Month: 2, Year: 2025}, Type: notification.NotificationDueToday,
			})
			require.NoError(t, err)
			assert.True(t, sent)
		})
	}
}

func TestCacheStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.ReplaceMirror(ctx, seedMirror()))

	require.NoError(t, store.ReplaceAll(ctx, []notification.Template{{ID: "t9", Key: "custom", Body: "x", Active: true}}))
	tpl, err := store.ActiveTemplate(ctx, notification.TemplateBeforeDue)
	require.NoError(t, err)
	assert.Nil(t, tpl)

	err = store.ReplaceAll(ctx, []notification.ConfigEntry{{Key: "a"}, {Key: "a"}})
	require.Error(t, err)
	_, found, err := store.ConfigValue(ctx, notification.GatewayConfigKey)
	require.NoError(t, err)
	assert.True(t, found, "failed replace keeps previous config rows")

	assert.Error(t, store.ReplaceAll(ctx, []string{"nope"}))
}

func TestCacheStore_UpsertInvoices(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	first := notification.Invoice{
		ProviderInvoiceID: "p1",
		CompanyID:         strPtr("c1"),
		TaxID:             "12.345.678/0001-90",
		Status:            notification.InvoiceStatusOpen,
		AmountCents:       45000,
		DueDate:           dueOn(2025, 3, 10),
		Period:            notification.Period{Month: 3, Year: 2025},
		SyncedAt:          time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	res, err := store.UpsertInvoices(ctx, []notification.Invoice{first})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)

	stored, err := store.FindInvoiceByProviderID(ctx, "p1")
	require.NoError(t, err)
	originalID := stored.ID
	assert.NotEmpty(t, originalID)
	assert.Equal(t, "12345678000190", stored.TaxID)

	t.Run("last sync wins on conflict", func(t *testing.T) {
		updated := first
		updated.Status = notification.InvoiceStatusLate
		updated.AmountCents = 47000
		updated.SyncedAt = time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)

		res, err := store.UpsertInvoices(ctx, []notification.Invoice{updated})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Upserted)

		stored, err := store.FindInvoiceByProviderID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, originalID, stored.ID, "local id survives the upsert")
		assert.Equal(t, notification.InvoiceStatusLate, stored.Status)
		assert.Equal(t, int64(47000), stored.AmountCents)

		counts, err := store.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Invoices)
	})

	t.Run("a bad row does not abort the batch", func(t *testing.T) {
		res, err := store.UpsertInvoices(ctx, []notification.Invoice{
			{ProviderInvoiceID: "", Status: notification.InvoiceStatusOpen},
			{ProviderInvoiceID: "p2", Status: notification.InvoiceStatusOpen, Period: notification.Period{Month: 4, Year: 2025}, SyncedAt: time.Now()},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Upserted)
		assert.Len(t, res.Failed, 1)

		_, err = store.FindInvoiceByProviderID(ctx, "p2")
		assert.NoError(t, err)
	})

	t.Run("cancelled context stops the batch", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.UpsertInvoices(cctx, []notification.Invoice{{ProviderInvoiceID: "p3"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCacheStore_ListDispatchCandidates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.ReplaceMirror(ctx, seedMirror()))

	now := time.Now()
	_, err := store.UpsertInvoices(ctx, []notification.Invoice{
		{ProviderInvoiceID: "late", CompanyID: strPtr("c1"), Status: notification.InvoiceStatusLate, DueDate: dueOn(2025, 3, 1), Period: notification.Period{Month: 3, Year: 2025}, SyncedAt: now},
		{ProviderInvoiceID: "open", CompanyID: strPtr("c2"), Status: notification.InvoiceStatusOpen, DueDate: dueOn(2025, 3, 5), Period: notification.Period{Month: 3, Year: 2025}, SyncedAt: now},
		{ProviderInvoiceID: "paid", CompanyID: strPtr("c1"), Status: notification.InvoiceStatusPaid, DueDate: dueOn(2025, 2, 10), Period: notification.Period{Month: 2, Year: 2025}, SyncedAt: now},
		{ProviderInvoiceID: "orphan", Status: notification.InvoiceStatusOpen, DueDate: dueOn(2025, 3, 2), Period: notification.Period{Month: 3, Year: 2025}, SyncedAt: now},
		{ProviderInvoiceID: "no-due", CompanyID: strPtr("c1"), Status: notification.InvoiceStatusOpen, Period: notification.Period{Month: 3, Year: 2025}, SyncedAt: now},
		{ProviderInvoiceID: "ghost", CompanyID: strPtr("gone"), Status: notification.InvoiceStatusOpen, DueDate: dueOn(2025, 3, 3), Period: notification.Period{Month: 3, Year: 2025}, SyncedAt: now},
	})
	require.NoError(t, err)

	candidates, err := store.ListDispatchCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "late", candidates[0].Invoice.ProviderInvoiceID)
	assert.Equal(t, "Padaria Central", candidates[0].Company.Name)
	assert.Equal(t, "open", candidates[1].Invoice.ProviderInvoiceID)
	assert.Equal(t, "c2", candidates[1].Company.ID)
}

func TestCacheStore_FindInvoiceForPeriod(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	now := time.Now()
	march := notification.Period{Month: 3, Year: 2025}

	_, err := store.UpsertInvoices(ctx, []notification.Invoice{
		{ProviderInvoiceID: "cancelled", CompanyID: strPtr("c1"), Status: notification.InvoiceStatusCancelled, DueDate: dueOn(2025, 3, 20), Period: march, SyncedAt: now},
		{ProviderInvoiceID: "open", CompanyID: strPtr("c1"), Status: notification.InvoiceStatusOpen, DueDate: dueOn(2025, 3, 10), Period: march, SyncedAt: now},
	})
	require.NoError(t, err)

	inv, err := store.FindInvoiceForPeriod(ctx, "c1", march)
	require.NoError(t, err)
	assert.Equal(t, "open", inv.ProviderInvoiceID)

	_, err = store.FindInvoiceForPeriod(ctx, "c1", march.Next())
	assert.ErrorIs(t, err, notification.ErrInvoiceNotFound)
}

func TestCacheStore_TemplatesAndConfig(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.ReplaceMirror(ctx, seedMirror()))

	tpl, err := store.ActiveTemplate(ctx, notification.TemplateBeforeDue)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, "Olá {{empresa}}", tpl.Body)

	tpl, err = store.ActiveTemplate(ctx, notification.TemplateAfterDue)
	require.NoError(t, err)
	assert.Nil(t, tpl, "inactive template is not returned")

	tpl, err = store.ActiveTemplate(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, tpl)

	value, found, err := store.ConfigValue(ctx, notification.GatewayConfigKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, value, "baseUrl")

	_, found, err = store.ConfigValue(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheStore_SendLog(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	march := notification.Period{Month: 3, Year: 2025}
	key := notification.DedupKey{CompanyID: "c1", Period: march, Type: notification.NotificationFiveDaysBefore}

	sent, err := store.HasSuccessfulSend(ctx, key)
	require.NoError(t, err)
	assert.False(t, sent)

	failed := notification.NewSendRecord("c1", nil, march, notification.NotificationFiveDaysBefore, false, "gateway down", time.Now())
	require.NoError(t, store.AppendSendRecord(ctx, failed))

	sent, err = store.HasSuccessfulSend(ctx, key)
	require.NoError(t, err)
	assert.False(t, sent, "failed attempts are not part of the dedup ledger")

	ok := notification.NewSendRecord("c1", strPtr("inv-1"), march, notification.NotificationFiveDaysBefore, true, "", time.Now().Add(time.Second))
	require.NoError(t, store.AppendSendRecord(ctx, ok))

	sent, err = store.HasSuccessfulSend(ctx, key)
	require.NoError(t, err)
	assert.True(t, sent)

	other := key
	other.Type = notification.NotificationDueToday
	sent, err = store.HasSuccessfulSend(ctx, other)
	require.NoError(t, err)
	assert.False(t, sent)

	records, err := store.ListSendRecords(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Success)
	assert.True(t, records[1].Success)
	require.NotNil(t, records[1].InvoiceID)
	assert.Equal(t, "inv-1", *records[1].InvoiceID)
}
