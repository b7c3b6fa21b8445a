package authsession

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionChangeFunc receives provider pushed session changes. A nil session
// means the provider considers the client signed out.
type SessionChangeFunc func(event ChangeEvent, session *Session)

// Subscription is the handle returned by OnSessionChange
type Subscription interface {
	Unsubscribe()
}

// IdentityProvider is the external service of record for credentials,
// tokens and session persistence.
type IdentityProvider interface {
	OnSessionChange(fn SessionChangeFunc) Subscription
	GetCurrentSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, creds Credentials) error
	SignUp(ctx context.Context, creds Credentials, opts SignUpOptions) error
	SignOut(ctx context.Context) error
}

// ProfileLookup resolves the profile record keyed by user id
type ProfileLookup interface {
	LookupProfile(ctx context.Context, userID string) (*Profile, error)
}

// ProfileLookupFunc adapts a function to the ProfileLookup interface.
type ProfileLookupFunc func(ctx context.Context, userID string) (*Profile, error)

// LookupProfile implements ProfileLookup.
func (f ProfileLookupFunc) LookupProfile(ctx context.Context, userID string) (*Profile, error) {
	if f == nil {
		return nil, ErrProfileNotFound
	}
	return f(ctx, userID)
}

// Config holds session provider options
type Config interface {
	GetSiteURL() string
	GetRedirectPath() string
	GetProfileTable() string
	GetAdminRole() string
	GetLookupTimeout() time.Duration
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH-SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH-SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH-SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH-SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
