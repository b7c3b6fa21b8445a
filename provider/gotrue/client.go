// Package gotrue adapts a hosted GoTrue compatible auth server, and the
// PostgREST endpoint serving its profiles table, to authsession interfaces.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

// Config holds the auth server connection settings.
type Config struct {
	// URL is the project base url, e.g. https://xyz.supabase.co
	URL string
	// AnonKey is sent as the apikey header on every request
	AnonKey string
	// ProfileTable is the PostgREST table queried by LookupProfile
	ProfileTable string

	HTTPClient *http.Client
}

// Client implements authsession.IdentityProvider and authsession.ProfileLookup
// against the auth server REST API. The current session is held in memory.
type Client struct {
	authsession.Emitter

	config     Config
	baseURL    string
	httpClient *http.Client
	logger     authsession.Logger
	now        func() time.Time

	mu      sync.Mutex
	current *authsession.Session
}

var (
	_ authsession.IdentityProvider = (*Client)(nil)
	_ authsession.ProfileLookup    = (*Client)(nil)
)

type Option func(*Client)

func WithLogger(logger authsession.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now, used to compute token expiry
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client for the auth server at cfg.URL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, goerrors.New("gotrue: url is required", goerrors.CategoryBadInput)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "gotrue: invalid url")
	}
	if cfg.ProfileTable == "" {
		cfg.ProfileTable = authsession.DefaultProfileTable
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		config:     cfg,
		baseURL:    base,
		httpClient: client,
		logger:     nopLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// GetCurrentSession returns the in-memory session. An expired session is
// refreshed once; if that fails the client is signed out and nil returned.
func (c *Client) GetCurrentSession(ctx context.Context) (*authsession.Session, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}

	if !current.Expired(c.now()) {
		return current, nil
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("expired session could not be refreshed: %v", err)
		c.clear()
		c.Emit(authsession.EventSignedOut, nil)
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, nil
}

// SetSession restores a previously issued session, e.g. one persisted by
// the caller, and emits SIGNED_IN.
func (c *Client) SetSession(session *authsession.Session) {
	if session == nil || session.User == nil {
		c.clear()
		c.Emit(authsession.EventSignedOut, nil)
		return
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	c.Emit(authsession.EventSignedIn, session)
}

// SignInWithPassword implements authsession.IdentityProvider.
func (c *Client) SignInWithPassword(ctx context.Context, creds authsession.Credentials) error {
	payload := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
	}

	var resp sessionResponse
	if err := c.doJSON(ctx, "sign_in", http.MethodPost, authPath+"/token?grant_type=password", "", payload, &resp); err != nil {
		return normalizeError(err)
	}

	session, err := resp.toSession(c.now())
	if err != nil {
		return normalizeError(providerError("sign_in", http.StatusOK, "missing_access_token", "missing access token", err, nil))
	}

	c.store(authsession.EventSignedIn, session)
	return nil
}

// SignUp implements authsession.IdentityProvider. When the server requires
// email confirmation no session is returned and no event is emitted.
func (c *Client) SignUp(ctx context.Context, creds authsession.Credentials, opts authsession.SignUpOptions) error {
	payload := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
	}
	if len(opts.Data) > 0 {
		payload["data"] = opts.Data
	}

	path := authPath + "/signup"
	if opts.RedirectTarget != "" {
		path += "?" + url.Values{"redirect_to": {opts.RedirectTarget}}.Encode()
	}

	var resp sessionResponse
	if err := c.doJSON(ctx, "sign_up", http.MethodPost, path, "", payload, &resp); err != nil {
		return normalizeError(err)
	}

	if resp.AccessToken == "" {
		c.logger.Info("sign up for %s pending email confirmation", creds.Email)
		return nil
	}

	session, err := resp.toSession(c.now())
	if err != nil {
		return normalizeError(providerError("sign_up", http.StatusOK, "invalid_response", "session without user", err, nil))
	}

	c.store(authsession.EventSignedIn, session)
	return nil
}

// SignOut revokes the session on the server. The local session is dropped
// and SIGNED_OUT emitted whether or not the server call succeeds.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	var err error
	if current != nil && current.AccessToken != "" {
		err = c.doJSON(ctx, "sign_out", http.MethodPost, authPath+"/logout", current.AccessToken, nil, nil)
	}

	c.clear()
	c.Emit(authsession.EventSignedOut, nil)

	if err != nil {
		return normalizeError(err)
	}
	return nil
}

// Refresh exchanges the refresh token for a new session and emits
// TOKEN_REFRESHED.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil || current.RefreshToken == "" {
		return goerrors.New("no session to refresh", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	payload := map[string]any{"refresh_token": current.RefreshToken}

	var resp sessionResponse
	if err := c.doJSON(ctx, "refresh", http.MethodPost, authPath+"/token?grant_type=refresh_token", "", payload, &resp); err != nil {
		return normalizeError(err)
	}

	session, err := resp.toSession(c.now())
	if err != nil {
		return normalizeError(providerError("refresh", http.StatusOK, "missing_access_token", "missing access token", err, nil))
	}

	c.store(authsession.EventTokenRefreshed, session)
	return nil
}

func (c *Client) store(event authsession.ChangeEvent, session *authsession.Session) {
	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	c.Emit(event, session)
}

func (c *Client) clear() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// bearer returns the current access token, falling back to the anon key.
func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.AccessToken != "" {
		return c.current.AccessToken
	}
	return c.config.AnonKey
}

func (c *Client) doJSON(ctx context.Context, operation, method, path, bearer string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return providerError(operation, 0, "invalid_request", "failed to encode request", err, nil)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return providerError(operation, 0, "invalid_request", "failed to build request", err, nil)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.config.AnonKey != "" {
		req.Header.Set("apikey", c.config.AnonKey)
	}
	if bearer == "" {
		bearer = c.config.AnonKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providerError(operation, 0, "unreachable", "", err, nil)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return providerError(operation, resp.StatusCode, "invalid_response", "failed to read response", err, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, desc, raw := parseError(data)
		return providerError(operation, resp.StatusCode, code, desc, nil, raw)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return providerError(operation, resp.StatusCode, "invalid_response", "failed to decode response", err, nil)
	}

	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
