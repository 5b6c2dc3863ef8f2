package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

const (
	maxTableSize       = 32 << 20
	defaultRESTTimeout = 30 * time.Second
	restPageSize       = 1000
)

// tableOrder is the stable sort column used to page each table
var tableOrder = map[string]string{
	TableCompanies: "id",
	TableInvoices:  "id",
	TableTemplates: "id",
	TableConfig:    "key",
	TableSendLog:   "id",
}

// RESTSource reads tables through a PostgREST-style HTTP API
type RESTSource struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRESTSource creates a RESTSource
func NewRESTSource(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *RESTSource {
	if timeout <= 0 {
		timeout = defaultRESTTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		pageSize:   restPageSize,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("remote.rest"),
	}
}

// FetchMirror reads all five tables
func (s *RESTSource) FetchMirror(ctx context.Context) (notification.Mirror, error) {
	companies, err := fetchTable[companyRow](ctx, s, TableCompanies)
	if err != nil {
		return notification.Mirror{}, err
	}
	invoices, err := fetchTable[invoiceRow](ctx, s, TableInvoices)
	if err != nil {
		return notification.Mirror{}, err
	}
	templates, err := fetchTable[templateRow](ctx, s, TableTemplates)
	if err != nil {
		return notification.Mirror{}, err
	}
	cfg, err := fetchTable[configRow](ctx, s, TableConfig)
	if err != nil {
		return notification.Mirror{}, err
	}
	sendLog, err := fetchTable[sendRecordRow](ctx, s, TableSendLog)
	if err != nil {
		return notification.Mirror{}, err
	}

	return notification.Mirror{
		Companies: mapRows(companies, companyRow.toDomain),
		Invoices:  mapRows(invoices, invoiceRow.toDomain),
		Templates: mapRows(templates, templateRow.toDomain),
		Config:    mapRows(cfg, configRow.toDomain),
		SendLog:   mapRows(sendLog, sendRecordRow.toDomain),
	}, nil
}

// AppendSendRecord inserts one send log row
func (s *RESTSource) AppendSendRecord(ctx context.Context, rec notification.SendRecord) error {
	body, err := json.Marshal(sendRecordRowFromDomain(rec))
	if err != nil {
		return fmt.Errorf("remote: failed to marshal send record: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPost, s.tableURL(TableSendLog), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	_, _, err = s.do(req, TableSendLog)
	return err
}

// fetchTable reads every row of table with limit/offset paging.
// The server may cap a page below the requested limit (max-rows), so the offset advances
// by the rows actually returned and paging stops at the Content-Range total, or at an
// empty page when the server sends no total.
func fetchTable[R any](ctx context.Context, s *RESTSource, table string) ([]R, error) {
	var all []R
	for {
		q := url.Values{}
		q.Set("select", "*")
		q.Set("order", tableOrder[table]+".asc")
		q.Set("limit", strconv.Itoa(s.pageSize))
		q.Set("offset", strconv.Itoa(len(all)))

		req, err := s.newRequest(ctx, http.MethodGet, s.tableURL(table)+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Prefer", "count=exact")

		body, header, err := s.do(req, table)
		if err != nil {
			return nil, err
		}
		var page []R
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("remote: decode %s: %w", table, err)
		}
		all = append(all, page...)

		total, known := contentRangeTotal(header.Get("Content-Range"))
		switch {
		case len(page) == 0:
			return all, nil
		case known && len(all) >= total:
			return all, nil
		case !known && len(page) < s.pageSize:
			return all, nil
		}
		s.logger.Debug("fetching next page", zap.String("table", table), zap.Int("rows", len(all)))
	}
}

// contentRangeTotal parses the total out of a "0-999/2500" Content-Range header
func contentRangeTotal(v string) (int, bool) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return 0, false
	}
	total, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return 0, false
	}
	return total, true
}

func (s *RESTSource) tableURL(table string) string {
	return s.baseURL + "/rest/v1/" + table
}

func (s *RESTSource) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return req, nil
}

func (s *RESTSource) do(req *http.Request, table string) ([]byte, http.Header, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("remote: %s %s: %w", req.Method, table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTableSize))
	if err != nil {
		return nil, nil, fmt.Errorf("remote: read %s: %w", table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("remote request failed",
			zap.String("table", table),
			zap.String("method", req.Method),
			zap.Int("status", resp.StatusCode),
		)
		return nil, nil, fmt.Errorf("remote: %s %s: HTTP %d", req.Method, table, resp.StatusCode)
	}
	return body, resp.Header, nil
}
