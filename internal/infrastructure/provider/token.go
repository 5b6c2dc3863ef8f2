package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
)

const (
	defaultSafetyMargin = 60 * time.Second
	defaultTokenTTL     = time.Hour
	refreshKey          = "token"
)

// TokenProvider obtains and caches client-credentials access tokens over mutual TLS.
// Concurrent callers that find the cache expired share a single refresh.
type TokenProvider struct {
	oauth      clientcredentials.Config
	httpClient *http.Client
	credErr    error
	margin     time.Duration
	defaultTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	group     singleflight.Group
}

// TokenOption configures a TokenProvider
type TokenOption func(*TokenProvider)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) { p.now = now }
}

// WithHTTPClient replaces the mTLS client built from the credentials
func WithHTTPClient(c *http.Client) TokenOption {
	return func(p *TokenProvider) { p.httpClient = c }
}

// NewTokenProvider creates a TokenProvider. Missing or invalid credential material
// does not fail construction; it is reported by every Token call instead.
func NewTokenProvider(cfg *config.ProviderConfig, logger *zap.Logger, opts ...TokenOption) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &TokenProvider{
		margin:     cfg.TokenSafetyMargin,
		defaultTTL: cfg.DefaultTokenTTL,
		now:        time.Now,
		logger:     logger.Named("provider.token"),
	}
	if p.margin <= 0 {
		p.margin = defaultSafetyMargin
	}
	if p.defaultTTL <= 0 {
		p.defaultTTL = defaultTokenTTL
	}

	creds, err := LoadCredentials(cfg)
	if err != nil {
		p.credErr = err
	} else {
		p.oauth = clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		p.httpClient = creds.HTTPClient(cfg.Timeout)
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HTTPClient returns the mTLS client used for provider API calls
func (p *TokenProvider) HTTPClient() (*http.Client, error) {
	if p.credErr != nil {
		return nil, p.credErr
	}
	return p.httpClient, nil
}

// Token returns a valid access token, refreshing it when the cached one has expired
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.credErr != nil {
		return "", p.credErr
	}
	if tok, ok := p.cached(); ok {
		return tok, nil
	}

	v, err, _ := p.group.Do(refreshKey, func() (any, error) {
		if tok, ok := p.cached(); ok {
			return tok, nil
		}
		return p.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *TokenProvider) cached() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" || !p.now().Before(p.expiresAt) {
		return "", false
	}
	return p.token, true
}

func (p *TokenProvider) refresh(ctx context.Context) (string, error) {
	issuedAt := p.now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Token(ctx)
	if err != nil {
		return "", toAuthError(err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", &notification.AuthError{Message: "empty access token"}
	}

	expiresAt := issuedAt.Add(p.lifetime(tok, issuedAt) - p.margin)

	p.mu.Lock()
	p.token = tok.AccessToken
	p.expiresAt = expiresAt
	p.mu.Unlock()

	p.logger.Debug("access token refreshed", zap.Time("expires_at", expiresAt))
	return tok.AccessToken, nil
}

// lifetime prefers the raw expires_in field, then the parsed expiry, then the default TTL
func (p *TokenProvider) lifetime(tok *oauth2.Token, issuedAt time.Time) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	if !tok.Expiry.IsZero() {
		if d := tok.Expiry.Sub(issuedAt); d > 0 {
			return d
		}
	}
	return p.defaultTTL
}

func toAuthError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		authErr := &notification.AuthError{Message: strings.TrimSpace(string(re.Body)), Err: err}
		if re.Response != nil {
			authErr.StatusCode = re.Response.StatusCode
		}
		if authErr.Message == "" {
			authErr.Message = "token request rejected"
		}
		return authErr
	}
	return &notification.AuthError{Message: err.Error(), Err: err}
}
