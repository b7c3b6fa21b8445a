package authsession

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key holding the *Provider
const DefaultContextKey = "auth_session"

var providerCtxKey = &contextKey{"session-provider"}

type contextKey struct {
	name string
}

// WithProvider sets the Provider in the given context
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerCtxKey, p)
}

// FromContext finds the Provider in the context.
func FromContext(ctx context.Context) (*Provider, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(providerCtxKey).(*Provider)
	return p, ok && p != nil
}

// MustFromContext returns the Provider in the context and panics with
// ErrNoProvider when there is none. Reading session state outside a
// provider is a programming error.
func MustFromContext(ctx context.Context) *Provider {
	p, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoProvider)
	}
	return p
}

// StateFromContext is a convenience wrapper returning the provider state
func StateFromContext(ctx context.Context) AuthState {
	return MustFromContext(ctx).State()
}

// FromRouter finds the Provider stored by ProviderMiddleware
func FromRouter(c router.Context) (*Provider, bool) {
	if raw := c.Locals(DefaultContextKey); raw != nil {
		if p, ok := raw.(*Provider); ok && p != nil {
			return p, true
		}
	}
	return FromContext(c.Context())
}

// ProviderMiddleware exposes p to downstream handlers through the router
// locals and the standard request context.
func ProviderMiddleware(p *Provider) router.MiddlewareFunc {
	if p == nil {
		panic("Missing Provider in session middleware...")
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			c.Locals(DefaultContextKey, p)
			c.SetContext(WithProvider(c.Context(), p))
			return next(c)
		}
	}
}
