// Package auth resolves the current user from a session token and issues
// sessions from one-time login codes.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnauthenticated means no valid session accompanies the request.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrInvalidCode means a login code is unknown, expired or already used.
	ErrInvalidCode = errors.New("invalid login code")
)

// CodeTTL bounds how long an issued login code stays redeemable.
const CodeTTL = 10 * time.Minute

// User is an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Store keeps login codes and sessions.
type Store interface {
	// IssueCode creates a one-time code that Redeem exchanges for a session.
	IssueCode(ctx context.Context, u User) (string, error)
	// Redeem consumes a code and returns a new session token.
	Redeem(ctx context.Context, code string) (string, error)
	// Session resolves a token to its user or returns ErrUnauthenticated.
	Session(ctx context.Context, token string) (User, error)
	// Revoke ends a session. Revoking an unknown token is not an error.
	Revoke(ctx context.Context, token string) error
}

type ctxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by the auth middleware.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}
