package notification

import "time"

// Invoice is a boleto fetched from the billing provider.
// ProviderInvoiceID is the upsert key; the latest sync wins on conflict.
type Invoice struct {
	ID                string        `json:"id"`
	ProviderInvoiceID string        `json:"providerInvoiceId"`
	CompanyID         *string       `json:"companyId,omitempty"`
	TaxID             string        `json:"taxId"`
	Status            InvoiceStatus `json:"status"`
	AmountCents       int64         `json:"amountCents"`
	DueDate           *time.Time    `json:"dueDate,omitempty"`
	PaidAt            *time.Time    `json:"paidAt,omitempty"`
	Period            Period        `json:"period"`
	SyncedAt          time.Time     `json:"syncedAt"`
}

// DispatchCandidate pairs a receivable invoice with its owning company
type DispatchCandidate struct {
	Invoice Invoice
	Company Company
}
