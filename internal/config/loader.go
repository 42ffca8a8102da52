package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from an optional YAML file named by
// JOURNAL_CONFIG and from environment variables. Tests can override Lookup and
// ReadFile to inject deterministic sources.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load builds and validates the configuration.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Defaults()

	if path, ok := l.Lookup("JOURNAL_CONFIG"); ok && strings.TrimSpace(path) != "" {
		data, err := l.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	overrideString(l.Lookup, "JOURNAL_ADDR", &cfg.Addr)
	overrideString(l.Lookup, "LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "APP_ENV", &cfg.Env)
	overrideString(l.Lookup, "SITE_URL", &cfg.SiteURL)
	overrideString(l.Lookup, "JOURNAL_DEV_TOKEN", &cfg.DevToken)
	overrideString(l.Lookup, "TRANSCRIBE_ENGINE", &cfg.Transcription.Engine)
	overrideString(l.Lookup, "OPENAI_API_KEY", &cfg.Transcription.APIKey)
	overrideString(l.Lookup, "OPENAI_BASE_URL", &cfg.Transcription.BaseURL)
	overrideString(l.Lookup, "WHISPER_SERVER_URL", &cfg.Transcription.WhisperURL)
	overrideString(l.Lookup, "TRANSCRIBE_MODEL", &cfg.Transcription.Model)
	overrideString(l.Lookup, "TRANSCRIBE_LANGUAGE", &cfg.Transcription.Language)
	overrideString(l.Lookup, "DATABASE_DRIVER", &cfg.Database.Driver)
	overrideString(l.Lookup, "DATABASE_URL", &cfg.Database.URL)
	overrideString(l.Lookup, "REDIS_ADDR", &cfg.Redis.Addr)
	overrideString(l.Lookup, "REDIS_PASSWORD", &cfg.Redis.Password)

	if err := overrideInt(l.Lookup, "REDIS_DB", &cfg.Redis.DB); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "MAX_CONCURRENT_STREAMS", &cfg.MaxStreams); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "UPSTREAM_POOL_SIZE", &cfg.Transcription.PoolSize); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(l.Lookup, "RELAY_TIMEOUT", &cfg.RelayTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(l.Lookup, "SESSION_TTL", &cfg.SessionTTL); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = n
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = d
	return nil
}
