// Package config loads process configuration from the environment and the
// stub protocol profile from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Database  DatabaseConfig
	Transport TransportConfig
	Protocol  ProtocolConfig
	Registry  RegistryConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration. The API drives remote
// shells, so it binds to loopback unless told otherwise.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8787"`
	Host        string   `envconfig:"HOST" default:"127.0.0.1"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// DatabaseConfig holds shell store configuration.
type DatabaseConfig struct {
	Path      string `envconfig:"DB_PATH" default:"data/stubterm.db"`
	FernetKey string `envconfig:"FERNET_KEY"`
}

// TransportConfig holds stub transport configuration.
type TransportConfig struct {
	Timeout          time.Duration `envconfig:"TRANSPORT_TIMEOUT" default:"30s"`
	Proxy            string        `envconfig:"TRANSPORT_PROXY"`
	RequestsPerSec   float64       `envconfig:"TRANSPORT_RPS" default:"0"`
	InsecureTLS      bool          `envconfig:"TRANSPORT_INSECURE_TLS" default:"true"`
	BreakerThreshold uint32        `envconfig:"TRANSPORT_BREAKER_FAILURES" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"TRANSPORT_BREAKER_COOLDOWN" default:"30s"`
}

// ProtocolConfig points at the stub profile. Empty uses the built-in one.
type ProtocolConfig struct {
	ProfilePath string `envconfig:"PROTOCOL_PROFILE"`
}

// RegistryConfig holds session registry configuration.
type RegistryConfig struct {
	SeedFile         string        `envconfig:"SHELL_SEED_FILE"`
	ProbeInterval    time.Duration `envconfig:"PROBE_INTERVAL" default:"0s"`
	ProbeConcurrency int           `envconfig:"PROBE_CONCURRENCY" default:"8"`
	TranscriptSize   int           `envconfig:"TERMINAL_TRANSCRIPT" default:"500"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8787",
			Host:        "127.0.0.1",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Logging: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Path: "data/stubterm.db",
		},
		Transport: TransportConfig{
			Timeout:          30 * time.Second,
			InsecureTLS:      true,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Registry: RegistryConfig{
			ProbeConcurrency: 8,
			TranscriptSize:   500,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// LoadProfile reads a protocol profile. Fields absent from the file keep
// the built-in defaults; the result is validated.
func LoadProfile(path string) (codec.Profile, error) {
	profile := codec.DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return codec.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return codec.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return codec.Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return profile, nil
}
