package notification

import (
	"time"

	"github.com/google/uuid"
)

// ChannelWhatsApp is the only dispatch channel
const ChannelWhatsApp = "whatsapp"

// SendRecord is the immutable outcome of one dispatch attempt.
// Records with Success=true form the dedup ledger.
type SendRecord struct {
	ID        string           `json:"id"`
	CompanyID string           `json:"companyId"`
	InvoiceID *string          `json:"invoiceId,omitempty"`
	Period    Period           `json:"period"`
	Channel   string           `json:"channel"`
	Type      NotificationType `json:"type"`
	Success   bool             `json:"success"`
	Detail    string           `json:"detail,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewSendRecord creates a record for a dispatch attempt
func NewSendRecord(companyID string, invoiceID *string, period Period, typ NotificationType, success bool, detail string, now time.Time) SendRecord {
	return SendRecord{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		InvoiceID: invoiceID,
		Period:    period,
		Channel:   ChannelWhatsApp,
		Type:      typ,
		Success:   success,
		Detail:    detail,
		CreatedAt: now,
	}
}

// DedupKey identifies a reminder that may succeed at most once
type DedupKey struct {
	CompanyID string
	Period    Period
	Type      NotificationType
}

// Key returns the dedup key of the record
func (r SendRecord) Key() DedupKey {
	return DedupKey{CompanyID: r.CompanyID, Period: r.Period, Type: r.Type}
}
