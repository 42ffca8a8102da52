// Command journal-mcp serves one user's journal entries to MCP clients over
// stdio.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hubenschmidt/voice-journal/internal/config"
	"github.com/hubenschmidt/voice-journal/internal/env"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

const version = "0.1.0"

func main() {
	// stdout carries the protocol
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("journal-mcp failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Loader{Lookup: os.LookupEnv, ReadFile: os.ReadFile}.Load()
	if err != nil {
		return err
	}
	userID := env.Str("JOURNAL_USER_ID", "")
	if userID == "" {
		return fmt.Errorf("JOURNAL_USER_ID is required")
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	s := newServer(&tools{store: db, userID: userID, log: logger.With("component", "mcp")}, version)
	logger.Info("journal-mcp serving", "user_id", userID, "database", cfg.Database.Driver)
	return server.ServeStdio(s)
}
