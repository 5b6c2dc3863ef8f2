package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Database  DatabaseConfig
	Provider  ProviderConfig
	Gateway   GatewayConfig
	Remote    RemoteConfig
	Jobs      JobsConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Timezone string // IANA zone used to decide "today", e.g. America/Sao_Paulo
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds the local cache database settings
type DatabaseConfig struct {
	Path            string // sqlite file path
	BusyTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime int // in minutes
}

// ProviderConfig holds the billing provider (mTLS OAuth2) settings
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	TokenURL     string
	APIBaseURL   string
	// Inline PEM or base64-encoded PEM; takes precedence over the paths
	CertPEM string
	KeyPEM  string
	CAPEM   string
	// Filesystem paths
	CertPath string
	KeyPath  string
	CAPath   string

	Timeout           time.Duration
	TokenSafetyMargin time.Duration
	DefaultTokenTTL   time.Duration
	PageSize          int
	MaxPages          int
}

// GatewayConfig holds the messaging gateway settings
type GatewayConfig struct {
	BaseURL       string
	Token         string
	ConfigKey     string // config table key holding {"baseUrl","token"}
	RetryAttempts int
	RetryDelay    time.Duration
	PaceInterval  time.Duration
	Timeout       time.Duration
}

// RemoteConfig holds the remote system of record settings
type RemoteConfig struct {
	Driver  string // rest, postgres or none
	URL     string // REST base URL
	APIKey  string
	DSN     string // postgres DSN
	Timeout time.Duration
}

// JobsConfig holds trigger endpoint and daily job settings
type JobsConfig struct {
	CronSecret     string
	BackendBaseURL string
	DailyEnabled   bool
	DailyHour      int
	DailyMinute    int
	CheckInterval  time.Duration
	RunTimeout     time.Duration
}

// RedisConfig holds Redis connection settings for the run lock
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
}

// StorageConfig holds the S3 document archive settings
type StorageConfig struct {
	ArchiveEnabled  bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
}

// TelemetryConfig holds OpenTelemetry metrics and tracing configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	Tracing           bool
	SamplingRatio     float64
}

// TracingEnabled reports whether spans are exported
func (c TelemetryConfig) TracingEnabled() bool {
	return c.Enabled && c.Tracing
}

// Load loads configuration from .env, TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CRM_ prefix (e.g., CRM_PROVIDER_CLIENT_ID)
// 2. .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is like Load but reads the TOML file at path when path is not empty
func LoadFile(path string) (*Config, error) {
	// A missing .env is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetDefault("telemetry.tracing", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Port:     v.GetString("app.port"),
			Timezone: v.GetString("app.timezone"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Path:            v.GetString("database.path"),
			BusyTimeout:     v.GetDuration("database.busy_timeout"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Provider: ProviderConfig{
			ClientID:          v.GetString("provider.client_id"),
			ClientSecret:      v.GetString("provider.client_secret"),
			Scopes:            v.GetStringSlice("provider.scopes"),
			TokenURL:          v.GetString("provider.token_url"),
			APIBaseURL:        v.GetString("provider.api_base_url"),
			CertPEM:           v.GetString("provider.cert_pem"),
			KeyPEM:            v.GetString("provider.key_pem"),
			CAPEM:             v.GetString("provider.ca_pem"),
			CertPath:          v.GetString("provider.cert_path"),
			KeyPath:           v.GetString("provider.key_path"),
			CAPath:            v.GetString("provider.ca_path"),
			Timeout:           v.GetDuration("provider.timeout"),
			TokenSafetyMargin: v.GetDuration("provider.token_safety_margin"),
			DefaultTokenTTL:   v.GetDuration("provider.default_token_ttl"),
			PageSize:          v.GetInt("provider.page_size"),
			MaxPages:          v.GetInt("provider.max_pages"),
		},
		Gateway: GatewayConfig{
			BaseURL:       v.GetString("gateway.base_url"),
			Token:         v.GetString("gateway.token"),
			ConfigKey:     v.GetString("gateway.config_key"),
			RetryAttempts: v.GetInt("gateway.retry_attempts"),
			RetryDelay:    v.GetDuration("gateway.retry_delay"),
			PaceInterval:  v.GetDuration("gateway.pace_interval"),
			Timeout:       v.GetDuration("gateway.timeout"),
		},
		Remote: RemoteConfig{
			Driver:  v.GetString("remote.driver"),
			URL:     v.GetString("remote.url"),
			APIKey:  v.GetString("remote.api_key"),
			DSN:     v.GetString("remote.dsn"),
			Timeout: v.GetDuration("remote.timeout"),
		},
		Jobs: JobsConfig{
			CronSecret:     v.GetString("jobs.cron_secret"),
			BackendBaseURL: v.GetString("jobs.backend_base_url"),
			DailyEnabled:   v.GetBool("jobs.daily_enabled"),
			DailyHour:      v.GetInt("jobs.daily_hour"),
			DailyMinute:    v.GetInt("jobs.daily_minute"),
			CheckInterval:  v.GetDuration("jobs.check_interval"),
			RunTimeout:     v.GetDuration("jobs.run_timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Storage: StorageConfig{
			ArchiveEnabled:  v.GetBool("storage.archive_enabled"),
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			KeyPrefix:       v.GetString("storage.key_prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			Tracing:           v.GetBool("telemetry.tracing"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "crm-dispatcher"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "America/Sao_Paulo"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// run-daily keeps the connection open while invoices are paced
		cfg.HTTP.WriteTimeout = 30 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/cache.db"
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 1
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 30 * time.Second
	}
	if cfg.Provider.TokenSafetyMargin == 0 {
		cfg.Provider.TokenSafetyMargin = 60 * time.Second
	}
	if cfg.Provider.DefaultTokenTTL == 0 {
		cfg.Provider.DefaultTokenTTL = time.Hour
	}
	if cfg.Provider.PageSize == 0 {
		cfg.Provider.PageSize = 200
	}
	if cfg.Provider.MaxPages == 0 {
		cfg.Provider.MaxPages = 50
	}
	if cfg.Gateway.ConfigKey == "" {
		cfg.Gateway.ConfigKey = "whatsapp_config"
	}
	if cfg.Gateway.RetryAttempts == 0 {
		cfg.Gateway.RetryAttempts = 3
	}
	if cfg.Gateway.RetryDelay == 0 {
		cfg.Gateway.RetryDelay = 4 * time.Second
	}
	if cfg.Gateway.PaceInterval == 0 {
		cfg.Gateway.PaceInterval = 2500 * time.Millisecond
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 60 * time.Second
	}
	if cfg.Remote.Driver == "" {
		cfg.Remote.Driver = "rest"
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Jobs.BackendBaseURL == "" {
		cfg.Jobs.BackendBaseURL = "http://localhost:" + cfg.App.Port
	}
	if cfg.Jobs.DailyHour == 0 && cfg.Jobs.DailyMinute == 0 {
		cfg.Jobs.DailyHour = 8
	}
	if cfg.Jobs.CheckInterval == 0 {
		cfg.Jobs.CheckInterval = time.Minute
	}
	if cfg.Jobs.RunTimeout == 0 {
		cfg.Jobs.RunTimeout = 2 * time.Hour
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 2 * time.Hour
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "boletos"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "crm-dispatcher"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone %q is not a valid IANA zone: %w", c.App.Timezone, err)
	}
	if c.Provider.PageSize < 1 || c.Provider.PageSize > 1000 {
		return fmt.Errorf("provider.page_size must be between 1 and 1000, got %d", c.Provider.PageSize)
	}
	if c.Provider.MaxPages < 1 {
		return fmt.Errorf("provider.max_pages must be positive")
	}
	if c.Gateway.RetryAttempts < 1 {
		return fmt.Errorf("gateway.retry_attempts must be at least 1")
	}
	if c.Gateway.RetryDelay < 0 || c.Gateway.PaceInterval < 0 {
		return fmt.Errorf("gateway delays cannot be negative")
	}
	if c.Jobs.DailyHour < 0 || c.Jobs.DailyHour > 23 || c.Jobs.DailyMinute < 0 || c.Jobs.DailyMinute > 59 {
		return fmt.Errorf("jobs.daily_hour/daily_minute out of range: %02d:%02d", c.Jobs.DailyHour, c.Jobs.DailyMinute)
	}

	switch c.Remote.Driver {
	case "none":
	case "rest":
		if c.Remote.URL != "" {
			if _, err := url.ParseRequestURI(c.Remote.URL); err != nil {
				return fmt.Errorf("remote.url is invalid: %w", err)
			}
		}
	case "postgres":
		if c.Remote.DSN == "" {
			return fmt.Errorf("remote.dsn is required when remote.driver is postgres")
		}
	default:
		return fmt.Errorf("remote.driver must be one of rest, postgres, none; got %q", c.Remote.Driver)
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}

	if c.Storage.ArchiveEnabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.archive_enabled is true")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Jobs.CronSecret == "" {
			return fmt.Errorf("jobs.cron_secret is required in production")
		}
		if len(c.Jobs.CronSecret) < 16 {
			return fmt.Errorf("jobs.cron_secret must be at least 16 characters in production")
		}
	}

	return nil
}

// Location returns the configured time zone, falling back to UTC
func (a *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the sqlite connection string for the cache database
func (d *DatabaseConfig) DSN() string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", d.BusyTimeout.Milliseconds()))
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	return "file:" + d.Path + "?" + q.Encode()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
