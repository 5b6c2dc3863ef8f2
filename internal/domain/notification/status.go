package notification

import "strings"

// InvoiceStatus is the normalized state of a provider invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen      InvoiceStatus = "OPEN"
	InvoiceStatusLate      InvoiceStatus = "LATE"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusUnknown   InvoiceStatus = "UNKNOWN"
)

// providerStatuses maps billing provider situation names onto InvoiceStatus.
var providerStatuses = map[string]InvoiceStatus{
	"OPEN":             InvoiceStatusOpen,
	"A_RECEBER":        InvoiceStatusOpen,
	"EM_ABERTO":        InvoiceStatusOpen,
	"EMABERTO":         InvoiceStatusOpen,
	"LATE":             InvoiceStatusLate,
	"OVERDUE":          InvoiceStatusLate,
	"ATRASADO":         InvoiceStatusLate,
	"VENCIDO":          InvoiceStatusLate,
	"PAID":             InvoiceStatusPaid,
	"PAGO":             InvoiceStatusPaid,
	"RECEBIDO":         InvoiceStatusPaid,
	"MARCADO_RECEBIDO": InvoiceStatusPaid,
	"CANCELLED":        InvoiceStatusCancelled,
	"CANCELED":         InvoiceStatusCancelled,
	"CANCELADO":        InvoiceStatusCancelled,
	"EXPIRADO":         InvoiceStatusCancelled,
	"DRAFT":            InvoiceStatusDraft,
	"RASCUNHO":         InvoiceStatusDraft,
}

// ParseInvoiceStatus maps a provider status name to InvoiceStatus, case-insensitively.
// Unrecognized names map to InvoiceStatusUnknown.
func ParseInvoiceStatus(s string) InvoiceStatus {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	if status, ok := providerStatuses[key]; ok {
		return status
	}
	return InvoiceStatusUnknown
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the known values
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusLate, InvoiceStatusPaid,
		InvoiceStatusCancelled, InvoiceStatusDraft, InvoiceStatusUnknown:
		return true
	}
	return false
}

// IsReceivable returns true for invoices that can still be charged
func (s InvoiceStatus) IsReceivable() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusLate
}

// ReceivableStatuses lists the statuses the scheduler considers
func ReceivableStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusOpen, InvoiceStatusLate}
}
