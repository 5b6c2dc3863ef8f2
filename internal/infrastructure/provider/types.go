package provider

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const providerDateLayout = "2006-01-02"

// SearchQuery selects one page of invoices by due-date range
type SearchQuery struct {
	From     time.Time
	To       time.Time
	Page     int // 1-based
	PageSize int
}

// SearchPage is one page of the provider's invoice search
type SearchPage struct {
	Items []RemoteInvoice `json:"items"`
	Total int             `json:"total"`
}

// RemoteInvoice is an invoice as returned by the provider
type RemoteInvoice struct {
	ID          string           `json:"id"`
	TaxID       string           `json:"taxId"`
	Payer       *RemotePayer     `json:"payer,omitempty"`
	Status      string           `json:"status"`
	DueDate     string           `json:"dueDate"`
	PaidAt      string           `json:"paidAt"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	Amount      *RemoteAmount    `json:"amount,omitempty"`
}

// RemotePayer is the nested payer block of an invoice
type RemotePayer struct {
	TaxID string `json:"taxId"`
	Name  string `json:"name"`
}

// RemoteAmount is the nested amount block of an invoice
type RemoteAmount struct {
	Value *decimal.Decimal `json:"value"`
}

// PayerTaxID returns the top-level tax id, falling back to the payer block
func (r RemoteInvoice) PayerTaxID() string {
	if strings.TrimSpace(r.TaxID) != "" {
		return r.TaxID
	}
	if r.Payer != nil {
		return r.Payer.TaxID
	}
	return ""
}

// AmountValue prefers totalAmount, then amount.value, then zero
func (r RemoteInvoice) AmountValue() decimal.Decimal {
	if r.TotalAmount != nil {
		return *r.TotalAmount
	}
	if r.Amount != nil && r.Amount.Value != nil {
		return *r.Amount.Value
	}
	return decimal.Zero
}

// ParseDate parses a provider date or timestamp as a civil date at UTC midnight.
// Empty or malformed values yield nil.
func ParseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if len(v) > len(providerDateLayout) {
		v = v[:len(providerDateLayout)]
	}
	t, err := time.Parse(providerDateLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

type invoiceDetail struct {
	Boleto *struct {
		PDFURL string `json:"pdfUrl"`
	} `json:"boleto,omitempty"`
	PDFURL     string `json:"pdfUrl"`
	LinkBoleto string `json:"linkBoleto"`
}

func (d invoiceDetail) documentURL() string {
	if d.Boleto != nil && d.Boleto.PDFURL != "" {
		return d.Boleto.PDFURL
	}
	if d.PDFURL != "" {
		return d.PDFURL
	}
	return d.LinkBoleto
}
