package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string `mapstructure:"ENV"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	APIBaseURL      string `mapstructure:"API_BASE_URL"`
	StateDir        string `mapstructure:"STATE_DIR"`
	StorageBackend  string `mapstructure:"STORAGE_BACKEND"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32  `mapstructure:"DB_MIN_CONNS"`
	StateNamespace  string `mapstructure:"STATE_NAMESPACE"`
	ResultWindowMS  int    `mapstructure:"RESULT_WINDOW_MS"`
	NoticeTTLMS     int    `mapstructure:"NOTICE_TTL_MS"`
	StubPort        string `mapstructure:"STUB_PORT"`
	StubSigningKey  string `mapstructure:"STUB_SIGNING_KEY"`
	StubTokenTTLMin int    `mapstructure:"STUB_TOKEN_TTL_MIN"`
}

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_BASE_URL", "http://127.0.0.1:5000/api")
	v.SetDefault("STATE_DIR", "")
	v.SetDefault("STORAGE_BACKEND", BackendFile)
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("STATE_NAMESPACE", "default")
	v.SetDefault("RESULT_WINDOW_MS", 5000)
	v.SetDefault("NOTICE_TTL_MS", 4000)
	v.SetDefault("STUB_PORT", "5000")
	v.SetDefault("STUB_TOKEN_TTL_MIN", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("API_BASE_URL")
	v.BindEnv("STATE_DIR")
	v.BindEnv("STORAGE_BACKEND")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("STATE_NAMESPACE")
	v.BindEnv("RESULT_WINDOW_MS")
	v.BindEnv("NOTICE_TTL_MS")
	v.BindEnv("STUB_PORT")
	v.BindEnv("STUB_SIGNING_KEY")
	v.BindEnv("STUB_TOKEN_TTL_MIN")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".cardiocare")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResultWindow is how long a freshly computed prediction stays eligible for
// direct display on the result page.
func (c *Config) ResultWindow() time.Duration {
	return time.Duration(c.ResultWindowMS) * time.Millisecond
}

// NoticeTTL is how long a notification banner stays visible.
func (c *Config) NoticeTTL() time.Duration {
	return time.Duration(c.NoticeTTLMS) * time.Millisecond
}

func (c *Config) StubTokenTTL() time.Duration {
	return time.Duration(c.StubTokenTTLMin) * time.Minute
}

// Validate checks that the configuration is usable. The postgres backend
// needs DATABASE_URL, and a configured stub signing key must be hex.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must not be empty")
	}
	switch c.StorageBackend {
	case BackendFile:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendFile, BackendPostgres, c.StorageBackend)
	}
	if c.ResultWindowMS <= 0 {
		return fmt.Errorf("RESULT_WINDOW_MS must be positive, got %d", c.ResultWindowMS)
	}
	if c.NoticeTTLMS <= 0 {
		return fmt.Errorf("NOTICE_TTL_MS must be positive, got %d", c.NoticeTTLMS)
	}
	if c.StubSigningKey != "" {
		if _, err := hex.DecodeString(c.StubSigningKey); err != nil {
			return fmt.Errorf("STUB_SIGNING_KEY is not valid hex: %w", err)
		}
	}
	return nil
}
