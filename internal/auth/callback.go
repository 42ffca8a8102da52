package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// CallbackConfig controls the login redirect handlers.
type CallbackConfig struct {
	// Development disables X-Forwarded-* origin handling and secure cookies.
	Development bool
	SessionTTL  time.Duration
	Logger      *slog.Logger
}

// Callback serves GET /auth/callback?code=&next=. A valid code becomes a
// session cookie and a redirect to next; anything else lands on
// /auth/auth-code-error.
func Callback(store Store, cfg CallbackConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := redirectOrigin(r, cfg.Development)
		code := r.URL.Query().Get("code")
		next := r.URL.Query().Get("next")
		if next == "" {
			next = "/"
		}

		if code != "" {
			token, err := store.Redeem(r.Context(), code)
			if err == nil {
				http.SetCookie(w, sessionCookie(token, cfg))
				if !strings.HasPrefix(next, "/") {
					next = "/" + next
				}
				http.Redirect(w, r, origin+next, http.StatusSeeOther)
				return
			}
			logger.Warn("login code rejected", "error", err)
		}
		http.Redirect(w, r, origin+"/auth/auth-code-error", http.StatusSeeOther)
	})
}

// SignOut revokes the current session and returns to the login page.
func SignOut(store Store, cfg CallbackConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := Token(r); token != "" {
			if err := store.Revoke(r.Context(), token); err != nil && cfg.Logger != nil {
				cfg.Logger.Warn("revoke session", "error", err)
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
	})
}

func sessionCookie(token string, cfg CallbackConfig) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   !cfg.Development,
		SameSite: http.SameSiteLaxMode,
	}
}

func redirectOrigin(r *http.Request, development bool) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" && !development {
		proto := r.Header.Get("X-Forwarded-Proto")
		if proto == "" {
			proto = "https"
		}
		return proto + "://" + host
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
