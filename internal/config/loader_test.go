package config_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/config"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoaderDefaults(t *testing.T) {
	loader := config.Loader{Lookup: lookupFrom(nil)}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Addr != config.DefaultAddr {
		t.Fatalf("expected addr %q, got %q", config.DefaultAddr, cfg.Addr)
	}
	if cfg.Transcription.Model != "whisper-1" {
		t.Fatalf("expected model whisper-1, got %q", cfg.Transcription.Model)
	}
	if cfg.Transcription.Language != "en" {
		t.Fatalf("expected language en, got %q", cfg.Transcription.Language)
	}
	if cfg.RelayTimeout != 30*time.Second {
		t.Fatalf("expected relay timeout 30s, got %s", cfg.RelayTimeout)
	}
	if cfg.Transcription.APIKey != "" {
		t.Fatalf("expected empty api key by default")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
}

func TestLoaderFileThenEnv(t *testing.T) {
	yamlDoc := `
addr: ":9000"
log_level: debug
relay_timeout: 45s
transcription:
  model: whisper-large
  language: pl
database:
  driver: pgx
  url: postgres://journal@localhost/journal
redis:
  addr: localhost:6379
`
	env := map[string]string{
		"JOURNAL_CONFIG":         "/etc/journal.yaml",
		"TRANSCRIBE_LANGUAGE":    "de",
		"OPENAI_API_KEY":         "sk-test",
		"MAX_CONCURRENT_STREAMS": "12",
	}
	loader := config.Loader{
		Lookup: lookupFrom(env),
		ReadFile: func(path string) ([]byte, error) {
			if path != "/etc/journal.yaml" {
				t.Fatalf("unexpected config path %q", path)
			}
			return []byte(yamlDoc), nil
		},
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.RelayTimeout != 45*time.Second {
		t.Errorf("relay timeout = %s, want 45s", cfg.RelayTimeout)
	}
	if cfg.Transcription.Model != "whisper-large" {
		t.Errorf("model = %q, want whisper-large", cfg.Transcription.Model)
	}
	if cfg.Transcription.Language != "de" {
		t.Errorf("language = %q, want env override de", cfg.Transcription.Language)
	}
	if cfg.Transcription.APIKey != "sk-test" {
		t.Errorf("api key not taken from env")
	}
	if cfg.Database.Driver != "pgx" {
		t.Errorf("driver = %q, want pgx", cfg.Database.Driver)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.MaxStreams != 12 {
		t.Errorf("max streams = %d, want 12", cfg.MaxStreams)
	}
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"unknown engine", map[string]string{"TRANSCRIBE_ENGINE": "carrier-pigeon"}},
		{"whisper without url", map[string]string{"TRANSCRIBE_ENGINE": "whisper-server"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"bad timeout", map[string]string{"RELAY_TIMEOUT": "forever"}},
		{"zero timeout", map[string]string{"RELAY_TIMEOUT": "0s"}},
		{"bad stream count", map[string]string{"MAX_CONCURRENT_STREAMS": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Loader{Lookup: lookupFrom(tt.env)}.Load()
			if err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoaderMissingFile(t *testing.T) {
	loader := config.Loader{
		Lookup:   lookupFrom(map[string]string{"JOURNAL_CONFIG": "/nope.yaml"}),
		ReadFile: func(string) ([]byte, error) { return nil, os.ErrNotExist },
	}
	_, err := loader.Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestSiteURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "http://localhost:3000"},
		{"journal.example.com", "https://journal.example.com"},
		{"https://journal.example.com/", "https://journal.example.com"},
		{"http://localhost:8000", "http://localhost:8000"},
	}
	for _, tt := range tests {
		if got := config.SiteURL(tt.in); got != tt.want {
			t.Errorf("SiteURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
