package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

const (
	maxResponseSize = 1 << 20
	defaultTimeout  = 60 * time.Second
	pdfDataPrefix   = "data:application/pdf;base64,"
)

// Client sends messages through the messaging gateway
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client for the given settings
func NewClient(settings Settings, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("gateway"),
	}
}

type textRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type documentRequest struct {
	Phone   string `json:"phone"`
	Base64  string `json:"base64"`
	Name    string `json:"name"`
	Caption string `json:"caption,omitempty"`
}

type gatewayResponse struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SendText sends a text message
func (c *Client) SendText(ctx context.Context, phone, message string) error {
	return c.post(ctx, "enviar-texto", textRequest{
		Phone:   NormalizePhone(phone),
		Message: message,
	})
}

// SendDocument sends a PDF with an optional caption
func (c *Client) SendDocument(ctx context.Context, phone string, pdf []byte, filename, caption string) error {
	return c.post(ctx, "enviar-documento", documentRequest{
		Phone:   NormalizePhone(phone),
		Base64:  pdfDataPrefix + base64.StdEncoding.EncodeToString(pdf),
		Name:    filename,
		Caption: caption,
	})
}

func (c *Client) post(ctx context.Context, action string, payload any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway."+action,
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/%s/%s", strings.TrimRight(c.settings.BaseURL, "/"), action, url.PathEscape(c.settings.Token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &TransientError{Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransientError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var parsed gatewayResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("gateway request failed", zap.String("action", action), zap.Int("status", resp.StatusCode))
		return classify(resp.StatusCode, failureMessage(parsed, raw, resp.Status))
	}
	// a 2xx only counts as delivered when the body is a gateway JSON reply without an error
	if decodeErr != nil {
		c.logger.Warn("gateway returned an unreadable reply", zap.String("action", action), zap.Int("status", resp.StatusCode))
		return &TransientError{
			StatusCode: resp.StatusCode,
			Message:    "unreadable gateway reply: " + failureMessage(gatewayResponse{}, raw, "empty body"),
			Err:        decodeErr,
		}
	}
	if parsed.Error != "" || (parsed.Success != nil && !*parsed.Success) || strings.EqualFold(parsed.Status, "error") {
		return classify(resp.StatusCode, failureMessage(parsed, raw, "unknown error"))
	}
	return nil
}

func failureMessage(parsed gatewayResponse, raw []byte, fallback string) string {
	switch {
	case parsed.Error != "":
		return parsed.Error
	case parsed.Message != "":
		return parsed.Message
	case len(bytes.TrimSpace(raw)) > 0 && len(raw) <= 256:
		return string(bytes.TrimSpace(raw))
	default:
		return fallback
	}
}
