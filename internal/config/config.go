// Package config loads the journal server configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAddr            = ":8000"
	DefaultLogLevel        = "info"
	DefaultEnv             = "production"
	DefaultSiteURL         = "http://localhost:3000"
	DefaultEngine          = "openai"
	DefaultModel           = "whisper-1"
	DefaultLanguage        = "en"
	DefaultDatabaseDriver  = "sqlite"
	DefaultDatabaseURL     = "journal.sqlite"
	DefaultRelayTimeout    = 30 * time.Second
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultMaxStreams      = 100
	DefaultUpstreamPool    = 20
	DefaultAuditBufferSize = 64
)

// Transcription configures the upstream speech-to-text provider.
type Transcription struct {
	Engine     string `yaml:"engine"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	WhisperURL string `yaml:"whisper_url"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	PoolSize   int    `yaml:"pool_size"`
}

// Database selects the entry store backend.
type Database struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

// Redis configures the session store. An empty Addr selects the in-memory store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the full journal server configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	LogLevel      string        `yaml:"log_level"`
	Env           string        `yaml:"env"`
	SiteURL       string        `yaml:"site_url"`
	DevToken      string        `yaml:"dev_token"`
	RelayTimeout  time.Duration `yaml:"relay_timeout"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	MaxStreams    int           `yaml:"max_streams"`
	AuditBuffer   int           `yaml:"audit_buffer"`
	Transcription Transcription `yaml:"transcription"`
	Database      Database      `yaml:"database"`
	Redis         Redis         `yaml:"redis"`
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() Config {
	return Config{
		Addr:         DefaultAddr,
		LogLevel:     DefaultLogLevel,
		Env:          DefaultEnv,
		SiteURL:      DefaultSiteURL,
		RelayTimeout: DefaultRelayTimeout,
		SessionTTL:   DefaultSessionTTL,
		MaxStreams:   DefaultMaxStreams,
		AuditBuffer:  DefaultAuditBufferSize,
		Transcription: Transcription{
			Engine:   DefaultEngine,
			Model:    DefaultModel,
			Language: DefaultLanguage,
			PoolSize: DefaultUpstreamPool,
		},
		Database: Database{
			Driver: DefaultDatabaseDriver,
			URL:    DefaultDatabaseURL,
		},
	}
}

// Development reports whether the server runs in a local development environment.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Validate rejects unusable values. A missing API key is not an error here:
// the relay reports it per request as a server configuration error.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.Transcription.Engine {
	case "openai":
	case "whisper-server":
		if c.Transcription.WhisperURL == "" {
			return fmt.Errorf("config: whisper-server engine requires whisper_url")
		}
	default:
		return fmt.Errorf("config: unknown transcription engine %q", c.Transcription.Engine)
	}
	switch c.Database.Driver {
	case "pgx", "sqlite":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config: database url is required")
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("config: relay_timeout must be > 0, got %s", c.RelayTimeout)
	}
	if c.MaxStreams < 1 {
		return fmt.Errorf("config: max_streams must be >= 1, got %d", c.MaxStreams)
	}
	if c.Transcription.PoolSize < 1 {
		c.Transcription.PoolSize = DefaultUpstreamPool
	}
	if c.AuditBuffer < 1 {
		c.AuditBuffer = DefaultAuditBufferSize
	}
	return nil
}

// SiteURL normalizes a configured site URL: https is assumed when no scheme is
// given and a trailing slash is removed.
func SiteURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		url = DefaultSiteURL
	}
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	return strings.TrimSuffix(url, "/")
}
