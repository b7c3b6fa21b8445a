// Package local implements authsession.IdentityProvider in process, backed by
// a Bun database. Passwords are hashed with bcrypt and sessions carry HS256
// access tokens. It plays the role of the hosted backend in tests, local
// development and single-binary deployments.
package local

import (
	"context"
	"strings"
	"sync"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	TextCodeInvalidToken = "INVALID_SESSION_TOKEN"
	TextCodeNoSession    = "NO_ACTIVE_SESSION"
)

var errEmptyPassword = errors.New("password must not be empty", errors.CategoryValidation)

// ErrNoSession is returned by Refresh when there is nothing to refresh
var ErrNoSession = errors.New("no active session", errors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(errors.CodeUnauthorized)

// ProfileWriter receives the profile created for each new user
type ProfileWriter interface {
	Upsert(ctx context.Context, profile *authsession.Profile) error
}

// Config configures the local identity provider.
type Config struct {
	// SigningKey signs access tokens. Required.
	SigningKey string
	// Issuer is set as the iss claim
	Issuer string
	// TokenTTL is the access token lifetime (default: 1h)
	TokenTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost
	BcryptCost int
	// AutoConfirm signs new users in right away instead of waiting for
	// ConfirmEmail.
	AutoConfirm bool
	// DefaultRole is the role written to new profiles (default: member)
	DefaultRole authsession.UserRole
}

// Provider is an in-process identity provider.
type Provider struct {
	authsession.Emitter

	config   Config
	users    *userStore
	sessions *sessionStore
	profiles ProfileWriter
	tokens   *tokenService
	logger   authsession.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *authsession.Session
}

var _ authsession.IdentityProvider = (*Provider)(nil)

type Option func(*Provider)

// WithProfileWriter stores a profile for every user that signs up
func WithProfileWriter(w ProfileWriter) Option {
	return func(p *Provider) {
		p.profiles = w
	}
}

func WithLogger(logger authsession.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for token issuance and expiry
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a local identity provider.
func New(db bun.IDB, cfg Config, opts ...Option) (*Provider, error) {
	if db == nil {
		return nil, errors.New("local: database is required", errors.CategoryBadInput)
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, errors.New("local: signing key is required", errors.CategoryBadInput)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = authsession.RoleMember
	}

	p := &Provider{
		config:   cfg,
		users:    &userStore{db: db},
		sessions: &sessionStore{db: db},
		logger:   nopLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	p.tokens = &tokenService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		ttl:        cfg.TokenTTL,
		now:        p.now,
	}

	return p, nil
}

// CreateTables creates the users and sessions tables if they do not exist.
func (p *Provider) CreateTables(ctx context.Context) error {
	if err := p.users.createTable(ctx); err != nil {
		return err
	}
	return p.sessions.createTable(ctx)
}

// GetCurrentSession returns the active session, or nil when signed out or
// when the session has expired. A session persisted by an earlier process
// is restored from the sessions table.
func (p *Provider) GetCurrentSession(ctx context.Context) (*authsession.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.currentLocked(ctx)
	if err != nil || current == nil {
		return nil, err
	}

	if current.Expired(p.now()) {
		p.logger.Debug("local session for %s expired", current.UserID())
		p.current = nil
		if err := p.sessions.delete(ctx); err != nil {
			p.logger.Error("failed to delete expired session: %v", err)
		}
		return nil, nil
	}

	return current, nil
}

// currentLocked returns the in-memory session, loading the persisted one
// when none is held. Stored sessions whose user no longer exists are dropped.
func (p *Provider) currentLocked(ctx context.Context) (*authsession.Session, error) {
	if p.current != nil {
		return p.current, nil
	}

	record, err := p.sessions.load(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session")
	}

	user, err := p.users.getByID(ctx, record.UserID)
	if err != nil {
		if !isNotFound(err) {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session user")
		}
		p.logger.Warn("dropping session for unknown user %s", record.UserID)
		if err := p.sessions.delete(ctx); err != nil {
			p.logger.Error("failed to delete orphan session: %v", err)
		}
		return nil, nil
	}

	p.current = record.toSession(user.toUser())
	return p.current, nil
}

// SignInWithPassword implements authsession.IdentityProvider.
func (p *Provider) SignInWithPassword(ctx context.Context, creds authsession.Credentials) error {
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	record, err := p.users.getByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return authsession.ErrInvalidCredentials
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during sign in")
	}

	if err := comparePasswordAndHash(creds.Password, record.PasswordHash); err != nil {
		return err
	}

	if record.ConfirmedAt == nil {
		return authsession.ErrEmailNotConfirmed
	}

	now := p.now()
	if err := p.users.trackSignIn(ctx, record.ID, now); err != nil {
		p.logger.Error("failed to track sign in: %v", err)
	}

	return p.startSession(ctx, authsession.EventSignedIn, record.toUser())
}

// SignUp implements authsession.IdentityProvider.
func (p *Provider) SignUp(ctx context.Context, creds authsession.Credentials, opts authsession.SignUpOptions) error {
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	if _, err := p.users.getByEmail(ctx, email); err == nil {
		return authsession.ErrUserAlreadyExists
	} else if !isNotFound(err) {
		return errors.Wrap(err, errors.CategoryInternal, "failed to check existing user")
	}

	hash, err := hashPassword(creds.Password, p.config.BcryptCost)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid password provided")
	}

	now := p.now()
	record := &UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     map[string]any{},
		RedirectTo:   opts.RedirectTarget,
		CreatedAt:    &now,
	}
	for k, v := range opts.Data {
		record.Metadata[k] = v
	}
	if p.config.AutoConfirm {
		record.ConfirmedAt = &now
	}

	if err := p.users.create(ctx, record); err != nil {
		return errors.Wrap(err, errors.CategoryConflict, "could not create user")
	}

	if p.profiles != nil {
		fullName, _ := record.Metadata[authsession.MetadataFullName].(string)
		profile := &authsession.Profile{
			ID:       record.ID,
			Role:     p.config.DefaultRole,
			FullName: fullName,
		}
		if err := p.profiles.Upsert(ctx, profile); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "could not create profile")
		}
	}

	if !p.config.AutoConfirm {
		p.logger.Info("user %s registered, confirmation redirect %q", record.ID, record.RedirectTo)
		return nil
	}

	return p.startSession(ctx, authsession.EventSignedIn, record.toUser())
}

// ConfirmEmail marks the user as confirmed so password sign-in succeeds.
// It returns the redirect target recorded at sign up.
func (p *Provider) ConfirmEmail(ctx context.Context, email string) (string, error) {
	record, err := p.users.getByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if isNotFound(err) {
			return "", errors.New("user not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound)
		}
		return "", err
	}

	if err := p.users.markConfirmed(ctx, record.ID, p.now()); err != nil {
		return "", err
	}

	return record.RedirectTo, nil
}

// SignOut implements authsession.IdentityProvider. The local session is
// dropped and SIGNED_OUT is emitted even if no session was active or the
// stored session could not be deleted.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	err := p.sessions.delete(ctx)
	p.mu.Unlock()

	p.Emit(authsession.EventSignedOut, nil)

	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete session")
	}
	return nil
}

// Refresh issues a new access token for the current user and emits
// TOKEN_REFRESHED.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	current, err := p.currentLocked(ctx)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if current == nil || current.User == nil {
		return ErrNoSession
	}

	record, err := p.users.getByID(ctx, current.User.ID)
	if err != nil {
		if isNotFound(err) {
			_ = p.SignOut(ctx)
			return ErrNoSession
		}
		return err
	}

	return p.startSession(ctx, authsession.EventTokenRefreshed, record.toUser())
}

// Validate parses an access token issued by this provider.
func (p *Provider) Validate(token string) (*SessionClaims, error) {
	return p.tokens.validate(token)
}

func (p *Provider) startSession(ctx context.Context, event authsession.ChangeEvent, user *authsession.User) error {
	session, err := p.tokens.issue(user)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.sessions.save(ctx, session, p.now()); err != nil {
		p.mu.Unlock()
		return errors.Wrap(err, errors.CategoryInternal, "failed to store session")
	}
	p.current = session
	p.mu.Unlock()

	p.Emit(event, session)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
