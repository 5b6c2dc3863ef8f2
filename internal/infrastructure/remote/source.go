// Package remote reads the system of record that the local cache mirrors
// and appends dispatch outcomes back to its send log.
package remote

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
)

// Remote drivers
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// ErrSourceDisabled is returned by the disabled source
var ErrSourceDisabled = errors.New("remote: no system of record configured")

// Source is the system of record
type Source interface {
	FetchMirror(ctx context.Context) (notification.Mirror, error)
	AppendSendRecord(ctx context.Context, rec notification.SendRecord) error
}

// New creates the source selected by cfg.Driver. The returned close function
// releases driver resources and is never nil.
func New(cfg *config.RemoteConfig, logger *zap.Logger) (Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case DriverREST, "":
		if cfg.URL == "" {
			return nil, noop, notification.NewConfigurationError("remote.url", "missing REST base url")
		}
		return NewRESTSource(cfg.URL, cfg.APIKey, cfg.Timeout, logger), noop, nil
	case DriverPostgres:
		src, err := OpenPostgresSource(cfg.DSN, logger)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil
	case DriverNone:
		return Disabled{}, noop, nil
	default:
		return nil, noop, notification.NewConfigurationError("remote.driver", fmt.Sprintf("unknown driver %q", cfg.Driver))
	}
}

// Disabled is a Source for deployments without a system of record
type Disabled struct{}

// FetchMirror always fails with ErrSourceDisabled
func (Disabled) FetchMirror(context.Context) (notification.Mirror, error) {
	return notification.Mirror{}, ErrSourceDisabled
}

// AppendSendRecord discards the record
func (Disabled) AppendSendRecord(context.Context, notification.SendRecord) error {
	return nil
}
