package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("API_BASE_URL")
	os.Unsetenv("STORAGE_BACKEND")
	os.Setenv("STATE_DIR", "/tmp/cardiocare-test")
	defer os.Unsetenv("STATE_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "http://127.0.0.1:5000/api" {
		t.Errorf("expected default API base URL, got %s", cfg.APIBaseURL)
	}
	if cfg.StorageBackend != BackendFile {
		t.Errorf("expected default backend %q, got %q", BackendFile, cfg.StorageBackend)
	}
	if cfg.ResultWindow() != 5*time.Second {
		t.Errorf("expected result window 5s, got %s", cfg.ResultWindow())
	}
	if cfg.NoticeTTL() != 4*time.Second {
		t.Errorf("expected notice ttl 4s, got %s", cfg.NoticeTTL())
	}
	if cfg.StateDir != "/tmp/cardiocare-test" {
		t.Errorf("expected STATE_DIR to be honoured, got %s", cfg.StateDir)
	}
}

func TestLoad_TrimsBaseURL(t *testing.T) {
	os.Setenv("API_BASE_URL", "http://example.test/api/")
	defer os.Unsetenv("API_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "http://example.test/api" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIBaseURL:     "http://localhost/api",
			StorageBackend: BackendFile,
			ResultWindowMS: 5000,
			NoticeTTLMS:    4000,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid file backend", func(c *Config) {}, false},
		{"postgres without url", func(c *Config) { c.StorageBackend = BackendPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.StorageBackend = BackendPostgres
			c.DatabaseURL = "postgres://u:p@localhost/db"
		}, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, true},
		{"zero result window", func(c *Config) { c.ResultWindowMS = 0 }, true},
		{"zero notice ttl", func(c *Config) { c.NoticeTTLMS = 0 }, true},
		{"bad signing key", func(c *Config) { c.StubSigningKey = "zz" }, true},
		{"hex signing key", func(c *Config) { c.StubSigningKey = "abcd" }, false},
		{"empty base url", func(c *Config) { c.APIBaseURL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}
