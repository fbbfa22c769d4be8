package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Auth modes for the console client.
const (
	AuthModeRemote = "remote"
	AuthModeFake   = "fake"
)

// Config holds the profile service configuration loaded from environment variables.
type Config struct {
	Port            int    `envconfig:"PORT" default:"8080"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL     string `envconfig:"DATABASE_URL" required:"true"`
	Version         string `envconfig:"VERSION" default:"dev"`
	JWTSecret       string `envconfig:"JWT_SECRET" required:"true"`
	PermissionsFile string `envconfig:"PERMISSIONS_FILE" default:""`
}

// Load reads the profile service configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig holds the affctl configuration, read from AFF_* variables.
type ClientConfig struct {
	IdentityURL     string        `envconfig:"IDENTITY_URL" default:"http://localhost:9999"`
	IdentityAPIKey  string        `envconfig:"IDENTITY_API_KEY" default:""`
	ProfileAPIURL   string        `envconfig:"PROFILE_API_URL" default:"http://localhost:8080"`
	AuthMode        string        `envconfig:"AUTH_MODE" default:"remote"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	PermissionsFile string        `envconfig:"PERMISSIONS_FILE" default:""`
	SessionFile     string        `envconfig:"SESSION_FILE" default:""`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"warn"`
	// FakeSecret signs tokens in fake mode; match the service's JWT_SECRET
	// to use the fake against a real profile service.
	FakeSecret string `envconfig:"FAKE_JWT_SECRET" default:"fake-identity-secret"`
}

// LoadClient reads the affctl configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("aff", &cfg); err != nil {
		return nil, err
	}
	switch cfg.AuthMode {
	case AuthModeRemote, AuthModeFake:
	default:
		return nil, fmt.Errorf("AFF_AUTH_MODE must be %q or %q, got %q", AuthModeRemote, AuthModeFake, cfg.AuthMode)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("AFF_HTTP_TIMEOUT must be positive, got %s", cfg.HTTPTimeout)
	}
	return &cfg, nil
}
