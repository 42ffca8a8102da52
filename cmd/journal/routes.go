package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/voice-journal/internal/auth"
	"github.com/hubenschmidt/voice-journal/internal/journal"
	"github.com/hubenschmidt/voice-journal/internal/relay"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

const (
	// defaultAuditLimit is how many relay audit rows are returned when the
	// caller omits ?limit=.
	defaultAuditLimit = 20

	msgEmptyContent = "Content is required"
	msgBadRequest   = "Invalid request body"
	msgAuthError    = "There was an error authenticating your account. Please try again."
)

type deps struct {
	store     *store.Store
	sessions  auth.Store
	authn     *auth.Authenticator
	relay     *relay.Relay
	wsHandler http.Handler
	callback  auth.CallbackConfig
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /api/transcribe", d.authn.Require(d.relay.Handler(auth.UserID)))
	mux.Handle("/ws/dictate", d.authn.Require(d.wsHandler))

	mux.Handle("GET /api/entries", d.authn.Require(http.HandlerFunc(d.handleListEntries)))
	mux.Handle("POST /api/entries", d.authn.Require(http.HandlerFunc(d.handleCreateEntry)))
	mux.Handle("PUT /api/entries/{id}", d.authn.Require(http.HandlerFunc(d.handleUpdateEntry)))
	mux.Handle("DELETE /api/entries/{id}", d.authn.Require(http.HandlerFunc(d.handleDeleteEntry)))
	mux.Handle("GET /api/transcriptions", d.authn.Require(http.HandlerFunc(d.handleTranscriptions)))

	mux.Handle("GET /{$}", d.authn.RequirePage(http.HandlerFunc(d.handleHome)))
	mux.Handle("GET /auth/callback", auth.Callback(d.sessions, d.callback))
	mux.Handle("POST /auth/signout", auth.SignOut(d.sessions, d.callback))
	mux.HandleFunc("GET /auth/login", handleLogin)
	mux.HandleFunc("GET /auth/auth-code-error", handleAuthCodeError)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	limit := queryInt(r, "limit", 0)
	if r.URL.Query().Get("recent") != "" {
		limit = journal.RecentLimit
	}
	entries, err := d.store.ListEntries(r.Context(), userID, limit)
	if err != nil {
		slog.Error("list entries", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := d.store.CountEntries(r.Context(), userID)
	if err != nil {
		slog.Error("count entries", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total})
}

func (d deps) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	content, ok := readContent(w, r)
	if !ok {
		return
	}
	e, err := d.store.CreateEntry(r.Context(), auth.UserID(r), content)
	if err != nil {
		slog.Error("create entry", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (d deps) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	content, ok := readContent(w, r)
	if !ok {
		return
	}
	e, err := d.store.UpdateEntry(r.Context(), auth.UserID(r), r.PathValue("id"), content)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("update entry", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (d deps) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	err := d.store.DeleteEntry(r.Context(), auth.UserID(r), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("delete entry", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d deps) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	rows, err := d.store.RecentTranscriptions(r.Context(), auth.UserID(r), queryInt(r, "limit", defaultAuditLimit))
	if err != nil {
		slog.Error("list transcriptions", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": rows})
}

func (d deps) handleHome(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	total, err := d.store.CountEntries(r.Context(), u.ID)
	if err != nil {
		slog.Error("count entries", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	name := u.Email
	if name == "" {
		name = u.ID
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Signed in as %s. %d journal entries.\n", name, total)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Sign in by opening a login link issued with: journal issue-code <user-id>")
}

func handleAuthCodeError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<p>%s</p>\n<a href=\"/auth/login\">Return to Login</a>\n", msgAuthError)
}

// readContent decodes {"content": "..."} and rejects blank content.
func readContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return "", false
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, msgEmptyContent)
		return "", false
	}
	return content, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
