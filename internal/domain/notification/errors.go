package notification

import (
	"errors"
	"fmt"
)

var (
	// ErrRunInProgress is returned when another dispatcher run holds the run lock
	ErrRunInProgress = errors.New("notification: a run is already in progress")

	// ErrCompanyNotFound is returned when a company id is not in the cache
	ErrCompanyNotFound = errors.New("notification: company not found")

	// ErrInvoiceNotFound is returned when no invoice matches a lookup
	ErrInvoiceNotFound = errors.New("notification: invoice not found")

	// ErrDocumentUnavailable is returned when the provider has no downloadable document
	ErrDocumentUnavailable = errors.New("notification: invoice document unavailable")
)

// ConfigurationError reports missing or invalid credentials or settings.
// It aborts a run before any network call is made.
type ConfigurationError struct {
	Setting string
	Reason  string
}

// NewConfigurationError creates a ConfigurationError for a setting
func NewConfigurationError(setting, reason string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// AuthError reports a rejected token request at the billing provider
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider authentication failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SyncError reports a page that could not be fetched or parsed during invoice sync.
// Sync keeps the items accumulated before the failing page.
type SyncError struct {
	Page       int
	StatusCode int
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("invoice sync page %d failed with status %d", e.Page, e.StatusCode)
	}
	return fmt.Sprintf("invoice sync page %d failed: %v", e.Page, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsRunFatal reports whether err must abort a whole run
func IsRunFatal(err error) bool {
	var cfgErr *ConfigurationError
	var authErr *AuthError
	return errors.As(err, &cfgErr) || errors.As(err, &authErr)
}
