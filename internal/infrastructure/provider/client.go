package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/telemetry"
)

const (
	maxResponseSize = 4 << 20
	maxDocumentSize = 10 << 20
)

// Errors for provider API calls
var (
	ErrProviderUnavailable = errors.New("provider: service unavailable")
	ErrMalformedResponse   = errors.New("provider: malformed response")
)

// StatusError reports a non-2xx provider response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider: HTTP %d", e.StatusCode)
}

// Client calls the billing provider's invoice API
type Client struct {
	baseURL string
	tokens  *TokenProvider
	logger  *zap.Logger
}

// NewClient creates a provider API client
func NewClient(baseURL string, tokens *TokenProvider, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		logger:  logger.Named("provider.client"),
	}
}

// SearchInvoices fetches one page of invoices due within the query range.
// Token failures are returned unchanged; HTTP failures as *StatusError.
func (c *Client) SearchInvoices(ctx context.Context, q SearchQuery) (_ *SearchPage, err error) {
	ctx, span := telemetry.StartSpan(ctx, "provider.search_invoices",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("page", q.Page),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	params := url.Values{}
	params.Set("dataVencimentoInicial", q.From.Format(providerDateLayout))
	params.Set("dataVencimentoFinal", q.To.Format(providerDateLayout))
	params.Set("pagina", strconv.Itoa(q.Page))
	params.Set("itensPorPagina", strconv.Itoa(q.PageSize))

	body, err := c.doRequest(ctx, c.baseURL+"/v1/cobrancas?"+params.Encode(), true, maxResponseSize)
	if err != nil {
		return nil, err
	}

	var page SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &page, nil
}

// DocumentURL returns the download URL of an invoice's payment slip
func (c *Client) DocumentURL(ctx context.Context, providerInvoiceID string) (string, error) {
	body, err := c.doRequest(ctx, c.baseURL+"/v1/cobrancas/"+url.PathEscape(providerInvoiceID), true, maxResponseSize)
	if err != nil {
		return "", err
	}
	var detail invoiceDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	link := detail.documentURL()
	if link == "" {
		return "", notification.ErrDocumentUnavailable
	}
	return link, nil
}

// DownloadDocument downloads a document. The bearer token is only sent to the API host.
func (c *Client) DownloadDocument(ctx context.Context, link string) ([]byte, error) {
	return c.doRequest(ctx, link, c.sameHost(link), maxDocumentSize)
}

// FetchDocument resolves and downloads an invoice's payment slip
func (c *Client) FetchDocument(ctx context.Context, providerInvoiceID string) (_ []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "provider.fetch_document",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("invoice_id", providerInvoiceID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	link, err := c.DocumentURL(ctx, providerInvoiceID)
	if err != nil {
		return nil, err
	}
	data, err := c.DownloadDocument(ctx, link)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, notification.ErrDocumentUnavailable
	}
	return data, nil
}

func (c *Client) sameHost(link string) bool {
	target, err := url.Parse(link)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Host, base.Host)
}

func (c *Client) doRequest(ctx context.Context, target string, authorize bool, limit int64) ([]byte, error) {
	httpClient, err := c.tokens.HTTPClient()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authorize {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("provider: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		c.logger.Warn("provider request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("path", req.URL.Path),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
