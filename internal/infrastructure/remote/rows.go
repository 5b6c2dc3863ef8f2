package remote

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

// Table names in the system of record
const (
	TableCompanies = "companies"
	TableInvoices  = "invoices"
	TableTemplates = "message_templates"
	TableConfig    = "app_config"
	TableSendLog   = "send_log"
)

// companyRow is a row of the remote companies table
type companyRow struct {
	ID         string          `json:"id" gorm:"column:id"`
	Name       string          `json:"name" gorm:"column:name"`
	TaxID      string          `json:"cnpj" gorm:"column:cnpj"`
	Phone      *string         `json:"whatsapp" gorm:"column:whatsapp"`
	DueDay     *int            `json:"due_day" gorm:"column:due_day"`
	MonthlyFee decimal.Decimal `json:"monthly_fee" gorm:"column:monthly_fee"`
	Status     string          `json:"status" gorm:"column:status"`
}

func (companyRow) TableName() string { return TableCompanies }

func (r companyRow) toDomain() notification.Company {
	c := notification.Company{
		ID:                 r.ID,
		Name:               r.Name,
		TaxID:              notification.NormalizeTaxID(r.TaxID),
		MonthlyAmountCents: notification.CentsFromDecimal(r.MonthlyFee),
		Active:             r.Status == "" || strings.EqualFold(r.Status, "active") || strings.EqualFold(r.Status, "ativo"),
	}
	if r.Phone != nil {
		c.Phone = *r.Phone
	}
	if r.DueDay != nil {
		c.DueDay = *r.DueDay
	}
	return c
}

// invoiceRow is a row of the remote invoices table
type invoiceRow struct {
	ID                string          `json:"id" gorm:"column:id"`
	ProviderInvoiceID string          `json:"provider_invoice_id" gorm:"column:provider_invoice_id"`
	CompanyID         *string         `json:"company_id" gorm:"column:company_id"`
	TaxID             string          `json:"tax_id" gorm:"column:tax_id"`
	Status            string          `json:"status" gorm:"column:status"`
	Amount            decimal.Decimal `json:"amount" gorm:"column:amount"`
	DueDate           Date            `json:"due_date" gorm:"column:due_date"`
	PaidAt            Date            `json:"paid_at" gorm:"column:paid_at"`
	PeriodMonth       int             `json:"period_month" gorm:"column:period_month"`
	PeriodYear        int             `json:"period_year" gorm:"column:period_year"`
	SyncedAt          *time.Time      `json:"synced_at" gorm:"column:synced_at"`
}

func (invoiceRow) TableName() string { return TableInvoices }

func (r invoiceRow) toDomain() notification.Invoice {
	inv := notification.Invoice{
		ID:                r.ID,
		ProviderInvoiceID: r.ProviderInvoiceID,
		CompanyID:         r.CompanyID,
		TaxID:             notification.NormalizeTaxID(r.TaxID),
		Status:            notification.ParseInvoiceStatus(r.Status),
		AmountCents:       notification.CentsFromDecimal(r.Amount),
		DueDate:           r.DueDate.Ptr(),
		PaidAt:            r.PaidAt.Ptr(),
		Period:            notification.Period{Month: r.PeriodMonth, Year: r.PeriodYear},
	}
	if inv.Period.Validate() != nil && inv.DueDate != nil {
		inv.Period = notification.PeriodOf(*inv.DueDate)
	}
	if r.SyncedAt != nil {
		inv.SyncedAt = *r.SyncedAt
	}
	return inv
}

// templateRow is a row of the remote message_templates table
type templateRow struct {
	ID     string `json:"id" gorm:"column:id"`
	Key    string `json:"template_key" gorm:"column:template_key"`
	Body   string `json:"body" gorm:"column:body"`
	Active bool   `json:"active" gorm:"column:active"`
}

func (templateRow) TableName() string { return TableTemplates }

func (r templateRow) toDomain() notification.Template {
	return notification.Template{ID: r.ID, Key: r.Key, Body: r.Body, Active: r.Active}
}

// configRow is a row of the remote app_config table
type configRow struct {
	Key   string `json:"key" gorm:"column:key"`
	Value string `json:"value" gorm:"column:value"`
}

func (configRow) TableName() string { return TableConfig }

func (r configRow) toDomain() notification.ConfigEntry {
	return notification.ConfigEntry{Key: r.Key, Value: r.Value}
}

// sendRecordRow is a row of the remote send_log table
type sendRecordRow struct {
	ID               string    `json:"id" gorm:"column:id"`
	CompanyID        string    `json:"company_id" gorm:"column:company_id"`
	InvoiceID        *string   `json:"invoice_id" gorm:"column:invoice_id"`
	PeriodMonth      int       `json:"period_month" gorm:"column:period_month"`
	PeriodYear       int       `json:"period_year" gorm:"column:period_year"`
	Channel          string    `json:"channel" gorm:"column:channel"`
	NotificationType string    `json:"notification_type" gorm:"column:notification_type"`
	Success          bool      `json:"success" gorm:"column:success"`
	Detail           *string   `json:"detail" gorm:"column:detail"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at"`
}

func (sendRecordRow) TableName() string { return TableSendLog }

func (r sendRecordRow) toDomain() notification.SendRecord {
	rec := notification.SendRecord{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		InvoiceID: r.InvoiceID,
		Period:    notification.Period{Month: r.PeriodMonth, Year: r.PeriodYear},
		Channel:   r.Channel,
		Type:      notification.NotificationType(r.NotificationType),
		Success:   r.Success,
		CreatedAt: r.CreatedAt,
	}
	if r.Detail != nil {
		rec.Detail = *r.Detail
	}
	return rec
}

func sendRecordRowFromDomain(rec notification.SendRecord) sendRecordRow {
	row := sendRecordRow{
		ID:               rec.ID,
		CompanyID:        rec.CompanyID,
		InvoiceID:        rec.InvoiceID,
		PeriodMonth:      rec.Period.Month,
		PeriodYear:       rec.Period.Year,
		Channel:          rec.Channel,
		NotificationType: string(rec.Type),
		Success:          rec.Success,
		CreatedAt:        rec.CreatedAt,
	}
	if rec.Detail != "" {
		detail := rec.Detail
		row.Detail = &detail
	}
	return row
}

func mapRows[R any, D any](rows []R, fn func(R) D) []D {
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}
