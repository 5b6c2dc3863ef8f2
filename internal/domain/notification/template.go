package notification

// Template is a message body with {{placeholder}} tokens
type Template struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Body   string `json:"body"`
	Active bool   `json:"active"`
}

// ConfigEntry is a key/value pair from the config table
type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GatewayConfigKey is the config key holding the messaging gateway settings
const GatewayConfigKey = "whatsapp_config"
