package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 100

// CacheStore is the local read/write mirror of the system of record
type CacheStore struct {
	db *gorm.DB
}

// NewCacheStore creates a CacheStore
func NewCacheStore(db *gorm.DB) *CacheStore {
	return &CacheStore{db: db}
}

// ReplaceMirror replaces companies, templates, config and send log in one transaction.
// Any failure rolls back every table; invoices in the mirror are ignored here (see UpsertInvoices).
// Local successful sends missing from m.SendLog survive the replace (see replaceSendLog).
func (s *CacheStore) ReplaceMirror(ctx context.Context, m notification.Mirror) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceTable(tx, mapSlice(m.Companies, models.CompanyModelFromDomain)); err != nil {
			return fmt.Errorf("replace companies: %w", err)
		}
		if err := replaceTable(tx, mapSlice(m.Templates, models.TemplateModelFromDomain)); err != nil {
			return fmt.Errorf("replace templates: %w", err)
		}
		if err := replaceTable(tx, mapSlice(m.Config, models.ConfigModelFromDomain)); err != nil {
			return fmt.Errorf("replace config: %w", err)
		}
		if err := replaceSendLog(tx, mapSlice(m.SendLog, models.SendRecordModelFromDomain)); err != nil {
			return fmt.Errorf("replace send log: %w", err)
		}
		return nil
	})
}

// ReplaceAll deletes every row of one table and inserts rows, inside one transaction.
// The table is chosen by the element type of rows.
func (s *CacheStore) ReplaceAll(ctx context.Context, rows any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch r := rows.(type) {
		case []notification.Company:
			return replaceTable(tx, mapSlice(r, models.CompanyModelFromDomain))
		case []notification.Template:
			return replaceTable(tx, mapSlice(r, models.TemplateModelFromDomain))
		case []notification.ConfigEntry:
			return replaceTable(tx, mapSlice(r, models.ConfigModelFromDomain))
		case []notification.SendRecord:
			return replaceSendLog(tx, mapSlice(r, models.SendRecordModelFromDomain))
		default:
			return fmt.Errorf("replace all: unsupported row type %T", rows)
		}
	})
}

func replaceTable[M any](tx *gorm.DB, rows []M) error {
	var model M
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(&rows, insertBatchSize).Error
}

// replaceSendLog replaces the send log with rows but keeps every local success whose id
// rows does not carry. A success whose remote write failed stays in the dedup ledger
// until the system of record has it. Failed local attempts are dropped.
func replaceSendLog(tx *gorm.DB, rows []models.SendRecordModel) error {
	var kept []models.SendRecordModel
	if err := tx.Where("success = ?", true).Find(&kept).Error; err != nil {
		return err
	}
	if err := replaceTable(tx, rows); err != nil {
		return err
	}

	remote := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		remote[r.ID] = struct{}{}
	}
	var localOnly []models.SendRecordModel
	for _, r := range kept {
		if _, ok := remote[r.ID]; !ok {
			localOnly = append(localOnly, r)
		}
	}
	if len(localOnly) == 0 {
		return nil
	}
	return tx.CreateInBatches(&localOnly, insertBatchSize).Error
}

func mapSlice[T, M any](in []T, fn func(T) M) []M {
	out := make([]M, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

// UpsertInvoices inserts each invoice or updates it on provider invoice id conflict.
// Rows are written one by one; a failing row is recorded and the rest continue.
func (s *CacheStore) UpsertInvoices(ctx context.Context, invoices []notification.Invoice) (notification.UpsertResult, error) {
	var result notification.UpsertResult
	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if inv.ProviderInvoiceID == "" {
			result.Failed = append(result.Failed, notification.UpsertFailure{
				Err: errors.New("missing provider invoice id"),
			})
			continue
		}

		model := models.InvoiceModelFromDomain(inv)
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "provider_invoice_id"}},
				DoUpdates: clause.AssignmentColumns(models.InvoiceUpdateColumns),
			}).
			Create(&model).Error
		if err != nil {
			result.Failed = append(result.Failed, notification.UpsertFailure{
				ProviderInvoiceID: inv.ProviderInvoiceID,
				Err:               err,
			})
			continue
		}
		result.Upserted++
	}
	return result, nil
}

// ListCompanies returns cached companies ordered by name
func (s *CacheStore) ListCompanies(ctx context.Context, activeOnly bool) ([]notification.Company, error) {
	var rows []models.CompanyModel
	q := s.db.WithContext(ctx).Order("name, id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notification.Company, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// GetCompany returns one cached company
func (s *CacheStore) GetCompany(ctx context.Context, id string) (*notification.Company, error) {
	var row models.CompanyModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notification.ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}
	c := row.ToDomain()
	return &c, nil
}

// ListInvoices returns every cached invoice ordered by due date
func (s *CacheStore) ListInvoices(ctx context.Context) ([]notification.Invoice, error) {
	var rows []models.InvoiceModel
	if err := s.db.WithContext(ctx).Order("due_date, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notification.Invoice, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ListDispatchCandidates returns receivable invoices with a due date and a known company,
// ordered by due date then id.
func (s *CacheStore) ListDispatchCandidates(ctx context.Context) ([]notification.DispatchCandidate, error) {
	statuses := make([]string, 0, 2)
	for _, st := range notification.ReceivableStatuses() {
		statuses = append(statuses, st.String())
	}

	var invoices []models.InvoiceModel
	err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("company_id IS NOT NULL AND due_date IS NOT NULL").
		Order("due_date, id").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, *inv.CompanyID)
	}
	var companies []models.CompanyModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]notification.Company, len(companies))
	for i := range companies {
		byID[companies[i].ID] = companies[i].ToDomain()
	}

	out := make([]notification.DispatchCandidate, 0, len(invoices))
	for i := range invoices {
		company, ok := byID[*invoices[i].CompanyID]
		if !ok {
			continue
		}
		out = append(out, notification.DispatchCandidate{Invoice: invoices[i].ToDomain(), Company: company})
	}
	return out, nil
}

// FindInvoiceByProviderID returns the cached invoice with the given provider id
func (s *CacheStore) FindInvoiceByProviderID(ctx context.Context, providerInvoiceID string) (*notification.Invoice, error) {
	var row models.InvoiceModel
	err := s.db.WithContext(ctx).Where("provider_invoice_id = ?", providerInvoiceID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notification.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	inv := row.ToDomain()
	return &inv, nil
}

// FindInvoiceForPeriod returns a company's invoice for a billing period,
// preferring receivable invoices over paid or cancelled ones.
func (s *CacheStore) FindInvoiceForPeriod(ctx context.Context, companyID string, period notification.Period) (*notification.Invoice, error) {
	var row models.InvoiceModel
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND period_month = ? AND period_year = ?", companyID, period.Month, period.Year).
		Order("CASE WHEN status IN ('OPEN', 'LATE') THEN 0 ELSE 1 END, due_date DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notification.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	inv := row.ToDomain()
	return &inv, nil
}

// ActiveTemplate returns the active template for key, or nil when there is none
func (s *CacheStore) ActiveTemplate(ctx context.Context, key string) (*notification.Template, error) {
	var row models.TemplateModel
	err := s.db.WithContext(ctx).Where("template_key = ? AND active = ?", key, true).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := row.ToDomain()
	return &t, nil
}

// ConfigValue returns the value stored under key
func (s *CacheStore) ConfigValue(ctx context.Context, key string) (string, bool, error) {
	var row models.ConfigModel
	err := s.db.WithContext(ctx).Where("config_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// HasSuccessfulSend reports whether the dedup ledger already holds a success for key
func (s *CacheStore) HasSuccessfulSend(ctx context.Context, key notification.DedupKey) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SendRecordModel{}).
		Where("company_id = ? AND period_month = ? AND period_year = ? AND notification_type = ? AND success = ?",
			key.CompanyID, key.Period.Month, key.Period.Year, string(key.Type), true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AppendSendRecord appends one record to the send log
func (s *CacheStore) AppendSendRecord(ctx context.Context, rec notification.SendRecord) error {
	model := models.SendRecordModelFromDomain(rec)
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListSuccessfulSends returns every successful record in the send log, oldest first
func (s *CacheStore) ListSuccessfulSends(ctx context.Context) ([]notification.SendRecord, error) {
	var rows []models.SendRecordModel
	if err := s.db.WithContext(ctx).Where("success = ?", true).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notification.SendRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ListSendRecords returns the send log, optionally filtered by company, oldest first
func (s *CacheStore) ListSendRecords(ctx context.Context, companyID string) ([]notification.SendRecord, error) {
	var rows []models.SendRecordModel
	q := s.db.WithContext(ctx).Order("created_at, id")
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notification.SendRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Counts returns row counts for the five cached tables
func (s *CacheStore) Counts(ctx context.Context) (notification.MirrorCounts, error) {
	var counts notification.MirrorCounts
	tables := []struct {
		model any
		dest  *int
	}{
		{&models.CompanyModel{}, &counts.Companies},
		{&models.InvoiceModel{}, &counts.Invoices},
		{&models.TemplateModel{}, &counts.Templates},
		{&models.ConfigModel{}, &counts.Config},
		{&models.SendRecordModel{}, &counts.SendLog},
	}
	for _, t := range tables {
		var n int64
		if err := s.db.WithContext(ctx).Model(t.model).Count(&n).Error; err != nil {
			return counts, err
		}
		*t.dest = int(n)
	}
	return counts, nil
}
