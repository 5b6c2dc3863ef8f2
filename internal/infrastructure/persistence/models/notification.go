package models

import (
	"time"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/google/uuid"
)

// CompanyModel maps the companies table
type CompanyModel struct {
	ID                 string `gorm:"primaryKey;type:text"`
	Name               string `gorm:"not null"`
	TaxID              string `gorm:"column:tax_id;index"`
	Phone              string
	DueDay             int   `gorm:"column:due_day"`
	MonthlyAmountCents int64 `gorm:"column:monthly_amount_cents"`
	Active             bool
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the model to a domain Company
func (m *CompanyModel) ToDomain() notification.Company {
	return notification.Company{
		ID:                 m.ID,
		Name:               m.Name,
		TaxID:              m.TaxID,
		Phone:              m.Phone,
		DueDay:             m.DueDay,
		MonthlyAmountCents: m.MonthlyAmountCents,
		Active:             m.Active,
	}
}

// CompanyModelFromDomain converts a domain Company to its model, normalizing the tax id
func CompanyModelFromDomain(c notification.Company) CompanyModel {
	return CompanyModel{
		ID:                 c.ID,
		Name:               c.Name,
		TaxID:              notification.NormalizeTaxID(c.TaxID),
		Phone:              c.Phone,
		DueDay:             c.DueDay,
		MonthlyAmountCents: c.MonthlyAmountCents,
		Active:             c.Active,
	}
}

// InvoiceModel maps the invoices table
type InvoiceModel struct {
	ID                string  `gorm:"primaryKey;type:text"`
	ProviderInvoiceID string  `gorm:"column:provider_invoice_id;uniqueIndex;not null"`
	CompanyID         *string `gorm:"column:company_id;index"`
	TaxID             string  `gorm:"column:tax_id"`
	Status            string  `gorm:"index;not null"`
	AmountCents       int64   `gorm:"column:amount_cents"`
	DueDate           *time.Time
	PaidAt            *time.Time
	PeriodMonth       int       `gorm:"column:period_month"`
	PeriodYear        int       `gorm:"column:period_year"`
	SyncedAt          time.Time `gorm:"column:synced_at"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the model to a domain Invoice
func (m *InvoiceModel) ToDomain() notification.Invoice {
	return notification.Invoice{
		ID:                m.ID,
		ProviderInvoiceID: m.ProviderInvoiceID,
		CompanyID:         m.CompanyID,
		TaxID:             m.TaxID,
		Status:            notification.InvoiceStatus(m.Status),
		AmountCents:       m.AmountCents,
		DueDate:           m.DueDate,
		PaidAt:            m.PaidAt,
		Period:            notification.Period{Month: m.PeriodMonth, Year: m.PeriodYear},
		SyncedAt:          m.SyncedAt,
	}
}

// InvoiceModelFromDomain converts a domain Invoice to its model.
// A missing id gets a fresh uuid; it is kept only when the row is inserted.
func InvoiceModelFromDomain(inv notification.Invoice) InvoiceModel {
	id := inv.ID
	if id == "" {
		id = uuid.New().String()
	}
	return InvoiceModel{
		ID:                id,
		ProviderInvoiceID: inv.ProviderInvoiceID,
		CompanyID:         inv.CompanyID,
		TaxID:             notification.NormalizeTaxID(inv.TaxID),
		Status:            string(inv.Status),
		AmountCents:       inv.AmountCents,
		DueDate:           inv.DueDate,
		PaidAt:            inv.PaidAt,
		PeriodMonth:       inv.Period.Month,
		PeriodYear:        inv.Period.Year,
		SyncedAt:          inv.SyncedAt,
	}
}

// InvoiceUpdateColumns are overwritten when a provider invoice is synced again
var InvoiceUpdateColumns = []string{
	"company_id", "tax_id", "status", "amount_cents", "due_date",
	"paid_at", "period_month", "period_year", "synced_at",
}

// TemplateModel maps the message_templates table
type TemplateModel struct {
	ID     string `gorm:"primaryKey;type:text"`
	Key    string `gorm:"column:template_key;index;not null"`
	Body   string
	Active bool
}

// TableName returns the table name for GORM
func (TemplateModel) TableName() string {
	return "message_templates"
}

// ToDomain converts the model to a domain Template
func (m *TemplateModel) ToDomain() notification.Template {
	return notification.Template{ID: m.ID, Key: m.Key, Body: m.Body, Active: m.Active}
}

// TemplateModelFromDomain converts a domain Template to its model
func TemplateModelFromDomain(t notification.Template) TemplateModel {
	return TemplateModel{ID: t.ID, Key: t.Key, Body: t.Body, Active: t.Active}
}

// ConfigModel maps the app_config table
type ConfigModel struct {
	Key   string `gorm:"column:config_key;primaryKey"`
	Value string
}

// TableName returns the table name for GORM
func (ConfigModel) TableName() string {
	return "app_config"
}

// ToDomain converts the model to a domain ConfigEntry
func (m *ConfigModel) ToDomain() notification.ConfigEntry {
	return notification.ConfigEntry{Key: m.Key, Value: m.Value}
}

// ConfigModelFromDomain converts a domain ConfigEntry to its model
func ConfigModelFromDomain(e notification.ConfigEntry) ConfigModel {
	return ConfigModel{Key: e.Key, Value: e.Value}
}

// SendRecordModel maps the send_log table
type SendRecordModel struct {
	ID          string  `gorm:"primaryKey;type:text"`
	CompanyID   string  `gorm:"column:company_id;not null"`
	InvoiceID   *string `gorm:"column:invoice_id"`
	PeriodMonth int     `gorm:"column:period_month"`
	PeriodYear  int     `gorm:"column:period_year"`
	Channel     string
	Type        string `gorm:"column:notification_type"`
	Success     bool
	Detail      string
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName returns the table name for GORM
func (SendRecordModel) TableName() string {
	return "send_log"
}

// ToDomain converts the model to a domain SendRecord
func (m *SendRecordModel) ToDomain() notification.SendRecord {
	return notification.SendRecord{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		InvoiceID: m.InvoiceID,
		Period:    notification.Period{Month: m.PeriodMonth, Year: m.PeriodYear},
		Channel:   m.Channel,
		Type:      notification.NotificationType(m.Type),
		Success:   m.Success,
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
}

// SendRecordModelFromDomain converts a domain SendRecord to its model
func SendRecordModelFromDomain(r notification.SendRecord) SendRecordModel {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	return SendRecordModel{
		ID:          id,
		CompanyID:   r.CompanyID,
		InvoiceID:   r.InvoiceID,
		PeriodMonth: r.Period.Month,
		PeriodYear:  r.Period.Year,
		Channel:     r.Channel,
		Type:        string(r.Type),
		Success:     r.Success,
		Detail:      r.Detail,
		CreatedAt:   r.CreatedAt,
	}
}
