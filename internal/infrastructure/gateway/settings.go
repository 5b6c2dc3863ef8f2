package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

// Settings locate the gateway instance
type Settings struct {
	BaseURL string `json:"baseUrl"`
	Token   string `json:"token"`
}

// Validate checks that both fields are set
func (s Settings) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(s.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// ResolveSettings picks the gateway settings for a run.
// A complete override wins, then the stored config entry, then the environment.
// stored is the raw JSON value of the config entry and may be empty.
func ResolveSettings(override *Settings, stored string, env Settings) (Settings, error) {
	if override != nil && override.Validate() == nil {
		return *override, nil
	}

	if strings.TrimSpace(stored) != "" {
		var s Settings
		if err := json.Unmarshal([]byte(stored), &s); err != nil {
			return Settings{}, notification.NewConfigurationError(notification.GatewayConfigKey,
				fmt.Sprintf("invalid JSON: %v", err))
		}
		if s.Validate() == nil {
			return s, nil
		}
	}

	if err := env.Validate(); err != nil {
		return Settings{}, notification.NewConfigurationError("gateway", err.Error())
	}
	return env, nil
}
