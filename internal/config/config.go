// Package config loads and validates the supervision portal configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the SUP_ prefix (e.g., SUP_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments — no recompilation or different binaries needed.
//
// Three legacy variables are honored without the SUP_ prefix because deployment
// tooling commonly injects them as generic secret names: DATABASE_URL (whole-DSN
// override; its absence together with an empty database.host selects the
// in-memory fixture store), JWT_SECRET, and PORT.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Security      SecurityConfig      `mapstructure:"security"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// URL, when set, is used verbatim as the connection string and the
	// individual host/port/name fields are ignored. Populated from the
	// DATABASE_URL environment variable when present.
	URL                string `mapstructure:"url"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// StoreConfig selects the storage backend once at startup. Handlers never
// branch on environment; they talk to the store interface.
type StoreConfig struct {
	// Backend is "postgres" or "memory". Empty means auto: postgres when a
	// database is configured, memory otherwise.
	Backend string `mapstructure:"backend"`
	// SeedFixtures loads the demo supervision dataset into the memory store.
	SeedFixtures bool `mapstructure:"seed_fixtures"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	// TokenTTL is the lifetime of issued session tokens.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// SessionSweepInterval is the cadence at which clients are expected to
	// re-check token expiry; surfaced in the login response so the frontend
	// does not hardcode it.
	SessionSweepInterval time.Duration `mapstructure:"session_sweep_interval"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// RedisURL, when set, switches the limiter from the in-process token
	// bucket to a Redis-backed one so limits hold across replicas.
	RedisURL string `mapstructure:"redis_url"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuditConfig holds audit logging configuration
type AuditConfig struct {
	// Enabled determines if audit logging is active
	Enabled bool `mapstructure:"enabled"`
	// LogReadOperations determines if GET requests should be logged
	LogReadOperations bool `mapstructure:"log_read_operations"`
	// LogFailedRequests determines if failed requests (4xx/5xx) should be logged
	LogFailedRequests bool `mapstructure:"log_failed_requests"`
	// QueueSize bounds the in-flight audit write queue. Entries beyond the
	// bound are dropped and counted, never blocking the request path.
	QueueSize int `mapstructure:"queue_size"`
	// RetryBudget is how many times a failed write is retried before the
	// entry is dropped.
	RetryBudget int `mapstructure:"retry_budget"`
	// Shipping routes a copy of every persisted audit entry to an external
	// destination (SIEM webhook or append-only file). Best effort only; the
	// hash-chained trail in the store stays authoritative.
	Shipping AuditShippingConfig `mapstructure:"shipping"`
}

// AuditShippingConfig configures export of persisted audit entries.
type AuditShippingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Type is "webhook" or "file"
	Type string `mapstructure:"type"`
	// WebhookURL is the SIEM ingestion endpoint (type=webhook)
	WebhookURL string `mapstructure:"webhook_url"`
	// WebhookTimeout bounds each delivery attempt (type=webhook)
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	// FilePath is the export file location (type=file)
	FilePath string `mapstructure:"file_path"`
	// MaxSizeMB triggers rotation of the export file (type=file)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files to keep (type=file)
	MaxBackups int `mapstructure:"max_backups"`
}

// NotificationsConfig holds settings for outbound notification emails
type NotificationsConfig struct {
	// Enabled globally toggles all outbound notification emails. Requires SMTP to be configured.
	Enabled bool `mapstructure:"enabled"`
	// SMTP holds the outbound mail server settings
	SMTP SMTPConfig `mapstructure:"smtp"`
	// FindingDueWarningDays is how many days before an inspection finding's
	// due date to warn the responsible supervisor (default 7)
	FindingDueWarningDays int `mapstructure:"finding_due_warning_days"`
	// FindingDueCheckIntervalHours determines how often the due-date check job runs (default 24)
	FindingDueCheckIntervalHours int `mapstructure:"finding_due_check_interval_hours"`
}

// SMTPConfig holds outbound mail server configuration for notification emails
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// UseTLS enables STARTTLS (port 587) or implicit TLS (port 465); false = plain SMTP
	UseTLS bool `mapstructure:"use_tls"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
// viper.BindEnv only errors when called with zero keys; since every key here is a non-empty
// hardcoded string, any error indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.read_timeout",
		"server.write_timeout",

		// Database
		"database.url",
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Store
		"store.backend",
		"store.seed_fixtures",

		// Auth
		"auth.token_ttl",
		"auth.session_sweep_interval",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.redis_url",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",

		// Audit
		"audit.enabled",
		"audit.log_read_operations",
		"audit.log_failed_requests",
		"audit.queue_size",
		"audit.retry_budget",
		"audit.shipping.enabled",
		"audit.shipping.type",
		"audit.shipping.webhook_url",
		"audit.shipping.webhook_timeout",
		"audit.shipping.file_path",
		"audit.shipping.max_size_mb",
		"audit.shipping.max_backups",

		// Notifications / SMTP
		"notifications.enabled",
		"notifications.smtp.host",
		"notifications.smtp.port",
		"notifications.smtp.username",
		"notifications.smtp.password",
		"notifications.smtp.from",
		"notifications.smtp.use_tls",
		"notifications.finding_due_warning_days",
		"notifications.finding_due_check_interval_hours",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file path if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yaml in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/supervision-portal")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	// Enable environment variable support
	v.SetEnvPrefix("SUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables for nested structures
	// This is necessary because AutomaticEnv() doesn't work well with Unmarshal()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = os.ExpandEnv(cfg.Database.Password)
	cfg.Notifications.SMTP.Password = os.ExpandEnv(cfg.Notifications.SMTP.Password)

	// Legacy unprefixed variables injected by deployment tooling.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults. host defaults to empty so a bare binary with no
	// configuration at all runs against the memory fixture store.
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "supervision")
	v.SetDefault("database.user", "supervision")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Store defaults
	v.SetDefault("store.backend", "")
	v.SetDefault("store.seed_fixtures", true)

	// Auth defaults
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.session_sweep_interval", "30s")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.rate_limiting.redis_url", "")
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "supervision-portal")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.log_read_operations", false)
	v.SetDefault("audit.log_failed_requests", true)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.retry_budget", 2)
	v.SetDefault("audit.shipping.enabled", false)

	// Notifications defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.use_tls", true)
	v.SetDefault("notifications.finding_due_warning_days", 7)
	v.SetDefault("notifications.finding_due_check_interval_hours", 24)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// Validate store backend selection
	switch c.Store.Backend {
	case "", "postgres", "memory":
	default:
		return fmt.Errorf("invalid store backend: %s (must be postgres or memory)", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && !c.DatabaseConfigured() {
		return fmt.Errorf("store.backend is postgres but no database is configured (set database.host or DATABASE_URL)")
	}

	// Validate database fields only when a relational store is in play
	if c.DatabaseConfigured() && c.Database.URL == "" {
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}

	// Validate TLS if enabled
	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Audit.QueueSize < 1 {
		return fmt.Errorf("audit.queue_size must be at least 1")
	}
	if c.Audit.RetryBudget < 0 {
		return fmt.Errorf("audit.retry_budget must not be negative")
	}
	if c.Audit.Shipping.Enabled {
		switch c.Audit.Shipping.Type {
		case "webhook":
			if c.Audit.Shipping.WebhookURL == "" {
				return fmt.Errorf("audit.shipping.webhook_url is required for the webhook shipper")
			}
		case "file":
			if c.Audit.Shipping.FilePath == "" {
				return fmt.Errorf("audit.shipping.file_path is required for the file shipper")
			}
		default:
			return fmt.Errorf("invalid audit.shipping.type: %s (must be webhook or file)", c.Audit.Shipping.Type)
		}
	}

	return nil
}

// DatabaseConfigured reports whether a relational database is reachable by
// configuration. False selects the in-memory fixture store.
func (c *Config) DatabaseConfigured() bool {
	return c.Database.URL != "" || c.Database.Host != ""
}

// StoreBackend resolves the effective storage backend after auto-selection.
func (c *Config) StoreBackend() string {
	if c.Store.Backend != "" {
		return c.Store.Backend
	}
	if c.DatabaseConfigured() {
		return "postgres"
	}
	return "memory"
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
