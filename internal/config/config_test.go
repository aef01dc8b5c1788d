package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Google.TokenURL != "https://oauth2.googleapis.com/token" {
		t.Errorf("expected Google token URL default, got '%s'", cfg.Google.TokenURL)
	}
	if len(cfg.Google.Scopes) != 1 || !strings.Contains(cfg.Google.Scopes[0], "photospicker") {
		t.Errorf("expected photospicker scope, got %v", cfg.Google.Scopes)
	}
	if cfg.Picker.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %s", cfg.Picker.PollInterval)
	}
	if cfg.Picker.ImportConcurrency != 1 {
		t.Errorf("expected sequential import by default, got %d", cfg.Picker.ImportConcurrency)
	}
	if cfg.Storage.MetadataBackend != BackendFile {
		t.Errorf("expected file metadata backend, got '%s'", cfg.Storage.MetadataBackend)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "client-123")
	t.Setenv("GOOGLE_REDIRECT_URL", "https://picker.example.com/callback")
	t.Setenv("PICKER_POLL_INTERVAL", "500ms")
	t.Setenv("IMPORT_CONCURRENCY", "4")
	t.Setenv("METADATA_BACKEND", "sqlite")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := Load()

	if cfg.Google.ClientID != "client-123" {
		t.Errorf("expected client id 'client-123', got '%s'", cfg.Google.ClientID)
	}
	if cfg.Google.RedirectURL != "https://picker.example.com/callback" {
		t.Errorf("unexpected redirect URL '%s'", cfg.Google.RedirectURL)
	}
	if cfg.Picker.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms poll interval, got %s", cfg.Picker.PollInterval)
	}
	if cfg.Picker.ImportConcurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Picker.ImportConcurrency)
	}
	if cfg.Storage.MetadataBackend != BackendSQLite {
		t.Errorf("expected sqlite backend, got '%s'", cfg.Storage.MetadataBackend)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("unexpected allowed origins %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid duration", "PICKER_POLL_INTERVAL", "soon"},
		{"negative duration", "PICKER_POLL_INTERVAL", "-1s"},
		{"invalid int", "IMPORT_CONCURRENCY", "many"},
		{"zero int", "IMPORT_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := Load()
			if cfg.Picker.PollInterval != 2*time.Second {
				t.Errorf("expected default poll interval, got %s", cfg.Picker.PollInterval)
			}
			if cfg.Picker.ImportConcurrency != 1 {
				t.Errorf("expected default concurrency, got %d", cfg.Picker.ImportConcurrency)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing client id", func(c *Config) { c.Google.ClientID = "" }, "GOOGLE_CLIENT_ID"},
		{"unknown credentials backend", func(c *Config) { c.Credentials.Backend = "vault" }, "unknown credentials backend"},
		{"redis without url", func(c *Config) { c.Credentials.Backend = BackendRedis }, "REDIS_URL"},
		{"unknown metadata backend", func(c *Config) { c.Storage.MetadataBackend = "s3" }, "unknown metadata backend"},
		{"mariadb without dsn", func(c *Config) { c.Storage.MetadataBackend = BackendMariaDB }, "MARIADB_DSN"},
		{"postgres without url", func(c *Config) { c.Storage.MetadataBackend = BackendPostgres }, "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Google.ClientID = "client"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing '%s', got %v", tt.wantErr, err)
			}
		})
	}
}
