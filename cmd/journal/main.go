package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubenschmidt/voice-journal/internal/audit"
	"github.com/hubenschmidt/voice-journal/internal/auth"
	"github.com/hubenschmidt/voice-journal/internal/config"
	"github.com/hubenschmidt/voice-journal/internal/relay"
	"github.com/hubenschmidt/voice-journal/internal/store"
	"github.com/hubenschmidt/voice-journal/internal/ws"
)

func main() {
	cfg, err := config.Loader{Lookup: os.LookupEnv, ReadFile: os.ReadFile}.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	if len(os.Args) > 1 && os.Args[1] == "issue-code" {
		if err = issueCode(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err = run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	db, err := store.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	sessions, closeSessions, err := openSessions(initCtx, cfg)
	initCancel()
	if err != nil {
		return err
	}
	defer closeSessions()

	auditor := audit.NewRecorder(db, cfg.AuditBuffer)
	defer auditor.Close()

	rel := relay.New(relay.Config{
		Upstream: newUpstream(cfg),
		Timeout:  cfg.RelayTimeout,
		Audit:    auditor,
		Logger:   slog.Default(),
	})

	handler := ws.NewHandler(ws.HandlerConfig{
		Relay:         rel,
		MaxConcurrent: cfg.MaxStreams,
		Identify:      auth.UserID,
		Logger:        slog.Default(),
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:     db,
		sessions:  sessions,
		authn:     auth.NewAuthenticator(sessions, slog.Default()),
		relay:     rel,
		wsHandler: handler,
		callback: auth.CallbackConfig{
			Development: cfg.Development(),
			SessionTTL:  cfg.SessionTTL,
			Logger:      slog.Default(),
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// closed once in-flight requests and dictation streams have drained
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		if err := handler.Close(ctx); err != nil {
			slog.Warn("dictation shutdown", "error", err)
		}
	}()

	slog.Info("journal starting",
		"addr", cfg.Addr,
		"engine", cfg.Transcription.Engine,
		"database", cfg.Database.Driver,
		"max_streams", cfg.MaxStreams,
	)

	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-drained
	slog.Info("journal stopped")
	return nil
}

// newUpstream returns nil when the OpenAI key is missing; the relay then
// answers every request with a configuration error.
func newUpstream(cfg config.Config) relay.Upstream {
	t := cfg.Transcription
	if t.Engine == "whisper-server" {
		return relay.NewWhisperUpstream(t.WhisperURL, t.Language, t.PoolSize, cfg.RelayTimeout)
	}
	if t.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, transcription is disabled")
		return nil
	}
	return relay.NewOpenAIUpstream(relay.OpenAIConfig{
		APIKey:   t.APIKey,
		BaseURL:  t.BaseURL,
		Model:    t.Model,
		Language: t.Language,
		PoolSize: t.PoolSize,
		Timeout:  cfg.RelayTimeout,
	})
}

// openSessions uses Redis when configured and an in-process store otherwise.
func openSessions(ctx context.Context, cfg config.Config) (auth.Store, func(), error) {
	if cfg.Redis.Addr != "" {
		rs, err := auth.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DevToken != "" {
			slog.Warn("dev token ignored with redis sessions")
		}
		slog.Info("sessions in redis", "addr", cfg.Redis.Addr)
		return rs, func() { rs.Close() }, nil
	}

	ms := auth.NewMemoryStore(cfg.SessionTTL)
	if cfg.DevToken != "" {
		ms.AddSession(cfg.DevToken, auth.User{ID: "dev"})
		slog.Info("dev session enabled", "user_id", "dev")
	}
	return ms, func() {}, nil
}

// issueCode prints a one-time login link for a user id.
func issueCode(cfg config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: journal issue-code <user-id> [email]")
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("issue-code requires REDIS_ADDR: login codes must outlive this process")
	}
	u := auth.User{ID: args[0]}
	if len(args) > 1 {
		u.Email = args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessions, closeSessions, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	code, err := sessions.IssueCode(ctx, u)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	fmt.Printf("%s/auth/callback?code=%s\n", config.SiteURL(cfg.SiteURL), url.QueryEscape(code))
	return nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
