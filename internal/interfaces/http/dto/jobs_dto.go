package dto

import (
	"strings"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/gateway"
)

// GatewayOverride carries per-request gateway settings.
// They replace the stored settings only when both fields are set.
type GatewayOverride struct {
	GatewayBaseURL string `json:"gatewayBaseUrl"`
	GatewayToken   string `json:"gatewayToken"`
}

// Settings returns the override, or nil when no field was provided
func (g GatewayOverride) Settings() *gateway.Settings {
	base := strings.TrimSpace(g.GatewayBaseURL)
	token := strings.TrimSpace(g.GatewayToken)
	if base == "" && token == "" {
		return nil
	}
	return &gateway.Settings{BaseURL: base, Token: token}
}

// RunScheduledSendsRequest is the optional body of run-scheduled-sends
type RunScheduledSendsRequest struct {
	GatewayOverride
}

// ProcessBoletoCompleteRequest asks for an invoice document and message
type ProcessBoletoCompleteRequest struct {
	CompanyID         string `json:"companyId" binding:"required"`
	Month             int    `json:"month" binding:"required"`
	Year              int    `json:"year" binding:"required"`
	ProviderInvoiceID string `json:"providerInvoiceId"`
	Message           string `json:"message"`
	GatewayOverride
}

// SendReminderRequest asks for a text message to one company
type SendReminderRequest struct {
	CompanyID string `json:"companyId" binding:"required"`
	Message   string `json:"message"`
	GatewayOverride
}

// HealthResponse reports process and cache database health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}
