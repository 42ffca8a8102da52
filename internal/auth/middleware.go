package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// CookieName holds the session token in browser requests.
const CookieName = "journal_session"

const msgUnauthenticated = "User not authenticated"

// Authenticator guards handlers behind a valid session.
type Authenticator struct {
	store Store
	log   *slog.Logger
}

// NewAuthenticator creates middleware backed by store.
func NewAuthenticator(store Store, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{store: store, log: logger.With("component", "auth")}
}

// Require rejects unauthenticated API requests with 401.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.resolve(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": msgUnauthenticated})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequirePage redirects unauthenticated browser requests to the login page.
func (a *Authenticator) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.resolve(r)
		if err != nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (User, error) {
	u, err := a.store.Session(r.Context(), Token(r))
	if err != nil && !errors.Is(err, ErrUnauthenticated) {
		a.log.Error("session lookup failed", "error", err)
	}
	return u, err
}

// Token extracts the session token from the Authorization header or cookie.
func Token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// UserID returns the authenticated user's id, or "" outside the middleware.
func UserID(r *http.Request) string {
	u, _ := UserFrom(r.Context())
	return u.ID
}
