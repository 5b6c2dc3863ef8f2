package provider

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
)

const pemMarker = "-----BEGIN"

// Errors for credential material
var (
	ErrMissingCertificate = errors.New("provider: client certificate is required")
	ErrMissingPrivateKey  = errors.New("provider: client private key is required")
	ErrInvalidPEM         = errors.New("provider: value is neither PEM nor base64-encoded PEM")
)

// Credentials holds the client id, secret and certificate used for mutual TLS
type Credentials struct {
	ClientID     string
	ClientSecret string
	Certificate  tls.Certificate
	RootCAs      *x509.CertPool
}

// LoadCredentials builds credentials from configuration.
// Inline PEM or base64 values take precedence over file paths.
func LoadCredentials(cfg *config.ProviderConfig) (*Credentials, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, notification.NewConfigurationError("provider.client_id", "missing client id")
	}

	certPEM, err := readMaterial(cfg.CertPEM, cfg.CertPath)
	if err != nil {
		return nil, notification.NewConfigurationError("provider.cert", err.Error())
	}
	if certPEM == nil {
		return nil, notification.NewConfigurationError("provider.cert", ErrMissingCertificate.Error())
	}
	keyPEM, err := readMaterial(cfg.KeyPEM, cfg.KeyPath)
	if err != nil {
		return nil, notification.NewConfigurationError("provider.key", err.Error())
	}
	if keyPEM == nil {
		return nil, notification.NewConfigurationError("provider.key", ErrMissingPrivateKey.Error())
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, notification.NewConfigurationError("provider.cert", fmt.Sprintf("invalid key pair: %v", err))
	}

	creds := &Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Certificate:  pair,
	}

	caPEM, err := readMaterial(cfg.CAPEM, cfg.CAPath)
	if err != nil {
		return nil, notification.NewConfigurationError("provider.ca", err.Error())
	}
	if caPEM != nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, notification.NewConfigurationError("provider.ca", "no certificates found in CA bundle")
		}
		creds.RootCAs = pool
	}
	return creds, nil
}

// TLSConfig returns a client TLS configuration presenting the certificate
func (c *Credentials) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{c.Certificate},
		RootCAs:      c.RootCAs,
	}
}

// HTTPClient returns an http.Client that performs mutual TLS
func (c *Credentials) HTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = c.TLSConfig()
	return &http.Client{Transport: transport, Timeout: timeout}
}

// readMaterial returns nil, nil when neither the inline value nor the path is set
func readMaterial(inline, path string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return decodePEMValue(inline)
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// decodePEMValue accepts raw PEM (with literal "\n" escapes as found in env files)
// or the base64 encoding of a PEM document.
func decodePEMValue(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if strings.Contains(v, pemMarker) {
		return []byte(strings.ReplaceAll(v, `\n`, "\n")), nil
	}

	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, v)
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, ErrInvalidPEM
	}
	if !strings.Contains(string(decoded), pemMarker) {
		return nil, ErrInvalidPEM
	}
	return decoded, nil
}
