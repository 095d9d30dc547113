package config

import (
	"os"
	"testing"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "supervision",
				Password: "secret",
				Name:     "supervision",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=supervision password=secret dbname=supervision sslmode=require",
		},
		{
			name: "url override wins",
			cfg: DatabaseConfig{
				URL:  "postgres://u:p@db.example.com:5432/supervision?sslmode=disable",
				Host: "ignored",
				Port: 9999,
			},
			want: "postgres://u:p@db.example.com:5432/supervision?sslmode=disable",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "user",
				Name:    "dbname",
				SSLMode: "prefer",
			},
			want: "host=localhost port=5432 user=user password= dbname=dbname sslmode=prefer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetDSN()
			if got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"localhost", ServerConfig{Host: "localhost", Port: 3000}, "localhost:3000"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetAddress()
			if got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Store backend selection
// ---------------------------------------------------------------------------

func TestStoreBackend_Auto(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit memory", Config{Store: StoreConfig{Backend: "memory"}, Database: DatabaseConfig{Host: "db"}}, "memory"},
		{"explicit postgres", Config{Store: StoreConfig{Backend: "postgres"}, Database: DatabaseConfig{Host: "db"}}, "postgres"},
		{"auto with host", Config{Database: DatabaseConfig{Host: "db"}}, "postgres"},
		{"auto with url", Config{Database: DatabaseConfig{URL: "postgres://x"}}, "postgres"},
		{"auto without database", Config{}, "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.StoreBackend(); got != tt.want {
				t.Errorf("StoreBackend() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func validConfig() Config {
	return Config{
		Server:  ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
		Logging: LoggingConfig{Level: "info"},
		Audit:   AuditConfig{QueueSize: 64, RetryBudget: 2},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}
}

func TestValidate_BadStoreBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Backend = "dynamo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown store backend")
	}
}

func TestValidate_PostgresWithoutDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for postgres backend without database config")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestValidate_ZeroQueueSize(t *testing.T) {
	cfg := validConfig()
	cfg.Audit.QueueSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero audit queue size")
	}
}

// ---------------------------------------------------------------------------
// Load with environment overrides
// ---------------------------------------------------------------------------

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("SUP_SERVER_PORT", "9191")
	os.Setenv("SUP_LOGGING_LEVEL", "debug")
	os.Setenv("DATABASE_URL", "postgres://env@db/supervision")
	os.Setenv("PORT", "7070")
	t.Cleanup(func() {
		os.Unsetenv("SUP_SERVER_PORT")
		os.Unsetenv("SUP_LOGGING_LEVEL")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("PORT")
	})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// PORT (deploy-injected) wins over SUP_SERVER_PORT for the listen port.
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Database.URL != "postgres://env@db/supervision" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.StoreBackend() != "postgres" {
		t.Errorf("StoreBackend() = %q, want postgres", cfg.StoreBackend())
	}
}

func TestLoad_DefaultsToMemoryStore(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend() != "memory" {
		t.Errorf("StoreBackend() = %q, want memory", cfg.StoreBackend())
	}
	if !cfg.Store.SeedFixtures {
		t.Error("Store.SeedFixtures default should be true")
	}
}
