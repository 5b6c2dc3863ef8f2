package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Errors for gateway settings
var (
	ErrMissingBaseURL = errors.New("gateway: base url is required")
	ErrMissingToken   = errors.New("gateway: token is required")
)

// transientMarkers are gateway error fragments that clear up on their own
var transientMarkers = []string{
	"reconnect",
	"token",
	"whatsapp session",
	"disconnected",
	"unknown error",
}

// TransientError is a dispatch failure worth retrying
type TransientError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway: transient failure (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: transient failure: %s", e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a dispatch failure that retrying cannot fix
type PermanentError struct {
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway: request rejected (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: request rejected: %s", e.Message)
}

// IsTransient reports whether err is a TransientError
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// classify turns a gateway failure message into a typed error
func classify(status int, message string) error {
	lower := strings.ToLower(message)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return &TransientError{StatusCode: status, Message: message}
		}
	}
	return &PermanentError{StatusCode: status, Message: message}
}
