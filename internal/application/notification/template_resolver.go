package notification

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

const displayDateLayout = "02/01/2006"

// Template placeholders
const (
	PlaceholderCompany  = "{{empresa}}"
	PlaceholderPeriod   = "{{competencia}}"
	PlaceholderDueDate  = "{{vencimento}}"
	PlaceholderAmount   = "{{valor}}"
	PlaceholderDaysLate = "{{dias_atraso}}"
)

var leftoverPlaceholder = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// TemplateStore looks up active templates
type TemplateStore interface {
	ActiveTemplate(ctx context.Context, key string) (*notification.Template, error)
}

// TemplateResolver fills message templates for a company and invoice
type TemplateResolver struct {
	store   TemplateStore
	clock   Clock
	printer *message.Printer
}

// NewTemplateResolver creates a TemplateResolver formatting money the Brazilian way
func NewTemplateResolver(store TemplateStore, clock Clock) *TemplateResolver {
	return &TemplateResolver{
		store:   store,
		clock:   clock,
		printer: message.NewPrinter(language.BrazilianPortuguese),
	}
}

// Resolve renders the active template for key.
// A missing or inactive template yields an empty string and no error.
func (r *TemplateResolver) Resolve(ctx context.Context, key string, company notification.Company, invoice *notification.Invoice, period notification.Period) (string, error) {
	tmpl, err := r.store.ActiveTemplate(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", key, err)
	}
	if tmpl == nil || !tmpl.Active {
		return "", nil
	}
	return r.Render(tmpl.Body, company, invoice, period), nil
}

// Render substitutes the placeholders in body and strips unknown ones
func (r *TemplateResolver) Render(body string, company notification.Company, invoice *notification.Invoice, period notification.Period) string {
	replacer := strings.NewReplacer(
		PlaceholderCompany, company.Name,
		PlaceholderPeriod, period.String(),
		PlaceholderDueDate, r.dueDate(company, invoice, period).Format(displayDateLayout),
		PlaceholderAmount, r.FormatAmount(amountCents(company, invoice)),
		PlaceholderDaysLate, strconv.Itoa(r.daysLate(invoice)),
	)
	out := replacer.Replace(body)
	return strings.TrimSpace(leftoverPlaceholder.ReplaceAllString(out, ""))
}

// FormatAmount formats centavos with two decimals and pt-BR grouping, e.g. 1.234,50
func (r *TemplateResolver) FormatAmount(cents int64) string {
	f, _ := notification.CentsToDecimal(cents).Float64()
	return r.printer.Sprintf("%.2f", f)
}

func (r *TemplateResolver) dueDate(company notification.Company, invoice *notification.Invoice, period notification.Period) time.Time {
	if invoice != nil && invoice.DueDate != nil {
		return *invoice.DueDate
	}
	return period.DueDate(company.DueDay, time.UTC)
}

func (r *TemplateResolver) daysLate(invoice *notification.Invoice) int {
	if invoice == nil || invoice.DueDate == nil || invoice.Status != notification.InvoiceStatusLate {
		return 0
	}
	return notification.DaysLate(r.clock.Today(), *invoice.DueDate)
}

func amountCents(company notification.Company, invoice *notification.Invoice) int64 {
	if invoice != nil && invoice.AmountCents > 0 {
		return invoice.AmountCents
	}
	return company.MonthlyAmountCents
}
