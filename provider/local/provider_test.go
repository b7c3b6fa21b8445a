package local

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type recordedEvent struct {
	event   authsession.ChangeEvent
	session *authsession.Session
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) handle(event authsession.ChangeEvent, session *authsession.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, session: session})
}

func (r *eventRecorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func setupProvider(t *testing.T, cfg Config, opts ...Option) (*Provider, *repository.ProfileStore) {
	t.Helper()
	return setupProviderWithDB(t, setupDB(t), cfg, opts...)
}

func setupProviderWithDB(t *testing.T, db *bun.DB, cfg Config, opts ...Option) (*Provider, *repository.ProfileStore) {
	t.Helper()

	ctx := context.Background()

	profiles := repository.NewProfileStore(db)
	require.NoError(t, profiles.CreateTable(ctx))

	if cfg.SigningKey == "" {
		cfg.SigningKey = "test-signing-key"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.MinCost
	}

	opts = append([]Option{WithProfileWriter(profiles)}, opts...)
	p, err := New(db, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, p.CreateTables(ctx))

	return p, profiles
}

func TestNew_RequiresSigningKey(t *testing.T) {
	db := setupDB(t)

	_, err := New(db, Config{})
	require.Error(t, err)

	_, err = New(nil, Config{SigningKey: "k"})
	require.Error(t, err)
}

func TestSignUp_CreatesUserAndProfile(t *testing.T) {
	ctx := context.Background()
	p, profiles := setupProvider(t, Config{})

	rec := &eventRecorder{}
	p.OnSessionChange(rec.handle)

	err := p.SignUp(ctx, authsession.Credentials{Email: "Ada@Example.com", Password: "secret1"}, authsession.SignUpOptions{
		RedirectTarget: "https://app.example.com/",
		Data:           map[string]any{authsession.MetadataFullName: "Ada Lovelace"},
	})
	require.NoError(t, err)

	// confirmation pending: no session and no event
	session, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Empty(t, rec.all())

	record, err := p.users.getByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/", record.RedirectTo)
	assert.Equal(t, "Ada Lovelace", record.Metadata[authsession.MetadataFullName])
	assert.Nil(t, record.ConfirmedAt)

	profile, err := profiles.LookupProfile(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, authsession.RoleMember, profile.Role)
	assert.Equal(t, "Ada Lovelace", profile.FullName)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	p, _ := setupProvider(t, Config{})

	creds := authsession.Credentials{Email: "dup@example.com", Password: "secret1"}
	require.NoError(t, p.SignUp(ctx, creds, authsession.SignUpOptions{}))

	err := p.SignUp(ctx, creds, authsession.SignUpOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, authsession.ErrUserAlreadyExists)
}

func TestSignIn_RequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	p, _ := setupProvider(t, Config{})

	creds := authsession.Credentials{Email: "pending@example.com", Password: "secret1"}
	require.NoError(t, p.SignUp(ctx, creds, authsession.SignUpOptions{RedirectTarget: "https://app/"}))

	err := p.SignInWithPassword(ctx, creds)
	assert.ErrorIs(t, err, authsession.ErrEmailNotConfirmed)

	redirect, err := p.ConfirmEmail(ctx, creds.Email)
	require.NoError(t, err)
	assert.Equal(t, "https://app/", redirect)

	rec := &eventRecorder{}
	p.OnSessionChange(rec.handle)

	require.NoError(t, p.SignInWithPassword(ctx, creds))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, authsession.EventSignedIn, events[0].event)
	require.NotNil(t, events[0].session)
	assert.Equal(t, "pending@example.com", events[0].session.User.Email)

	session, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)

	claims, err := p.Validate(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.Subject)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	p, _ := setupProvider(t, Config{AutoConfirm: true})

	creds := authsession.Credentials{Email: "a@example.com", Password: "secret1"}
	require.NoError(t, p.SignUp(ctx, creds, authsession.SignUpOptions{}))
	require.NoError(t, p.SignOut(ctx))

	rec := &eventRecorder{}
	p.OnSessionChange(rec.handle)

	err := p.SignInWithPassword(ctx, authsession.Credentials{Email: creds.Email, Password: "wrong-password"})
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)

	err = p.SignInWithPassword(ctx, authsession.Credentials{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)

	assert.Empty(t, rec.all())
}

func TestSignUp_AutoConfirmStartsSession(t *testing.T) {
	ctx := context.Background()
	p, _ := setupProvider(t, Config{AutoConfirm: true})

	rec := &eventRecorder{}
	p.OnSessionChange(rec.handle)

	require.NoError(t, p.SignUp(ctx, authsession.Credentials{Email: "auto@example.com", Password: "secret1"}, authsession.SignUpOptions{}))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, authsession.EventSignedIn, events[0].event)

	session, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "auto@example.com", session.User.Email)
}

func TestSignOut_ClearsSessionAndEmits(t *testing.T) {
	ctx := context.Background()
	p, _ := setupProvider(t, Config{AutoConfirm: true})

	require.NoError(t, p.SignUp(ctx, authsession.Credentials{Email: "out@example.com", Password: "secret1"}, authsession.SignUpOptions{}))

	rec := &eventRecorder{}
	p.OnSessionChange(rec.handle)

	require.NoError(t, p.SignOut(ctx))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, authsession.EventSignedOut, events[0].event)
	assert.Nil(t, events[0].session)

	session, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSession_PersistsAcrossProviders(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	first, _ := setupProviderWithDB(t, db, Config{AutoConfirm: true})
	require.NoError(t, first.SignUp(ctx, authsession.Credentials{Email: "keep@example.com", Password: "secret1"}, authsession.SignUpOptions{
		Data: map[string]any{authsession.MetadataFullName: "Keep Me"},
	}))

	issued, err := first.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, issued)

	second, _ := setupProviderWithDB(t, db, Config{AutoConfirm: true})
	restored, err := second.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, issued.AccessToken, restored.AccessToken)
	assert.Equal(t, issued.UserID(), restored.UserID())
	assert.Equal(t, "keep@example.com", restored.User.Email)
	assert.Equal(t, "Keep Me", restored.User.FullName())
	require.NotNil(t, restored.ExpiresAt)
	assert.WithinDuration(t, *issued.ExpiresAt, *restored.ExpiresAt, time.Second)

	claims, err := second.Validate(restored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, issued.UserID(), claims.Subject)

	require.NoError(t, second.SignOut(ctx))

	third, _ := setupProviderWithDB(t, db, Config{AutoConfirm: true})
	session, err := third.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSession_DroppedWhenUserIsGone(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	first, _ := setupProviderWithDB(t, db, Config{AutoConfirm: true})
	require.NoError(t, first.SignUp(ctx, authsession.Credentials{Email: "gone@example.com", Password: "secret1"}, authsession.SignUpOptions{}))

	_, err := db.NewDelete().Model((*UserRecord)(nil)).Where("email = ?", "gone@example.com").Exec(ctx)
	require.NoError(t, err)

	second, _ := setupProviderWithDB(t, db, Config{AutoConfirm: true})
	session, err := second.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	count, err := db.NewSelect().Model((*SessionRecord)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetCurrentSession_Expired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	p, _ := setupProvider(t, Config{AutoConfirm: true, TokenTTL: time.Minute}, WithClock(clock))

	require.NoError(t, p.SignUp(ctx, authsession.Credentials{Email: "ttl@example.com", Password: "secret1"}, authsession.SignUpOptions{}))

	session, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)

	now = now.Add(2 * time.Minute)

	session, err = p.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	p, _ := setupProvider(t, Config{AutoConfirm: true})

	err := p.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, p.SignUp(ctx, authsession.Credentials{Email: "r@example.com", Password: "secret1"}, authsession.SignUpOptions{}))
	before, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)

	rec := &eventRecorder{}
	p.OnSessionChange(rec.handle)

	require.NoError(t, p.Refresh(ctx))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, authsession.EventTokenRefreshed, events[0].event)
	assert.Equal(t, before.User.ID, events[0].session.User.ID)
	assert.NotEqual(t, before.RefreshToken, events[0].session.RefreshToken)
}

func TestValidate_RejectsForeignToken(t *testing.T) {
	p, _ := setupProvider(t, Config{AutoConfirm: true})

	other := &tokenService{
		signingKey: []byte("another-key"),
		ttl:        time.Hour,
		now:        time.Now,
	}
	session, err := other.issue(&authsession.User{ID: "u1"})
	require.NoError(t, err)

	_, err = p.Validate(session.AccessToken)
	require.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	_, err := hashPassword("", bcrypt.MinCost)
	require.Error(t, err)

	hash, err := hashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, comparePasswordAndHash("secret1", hash))
	assert.ErrorIs(t, comparePasswordAndHash("nope", hash), authsession.ErrInvalidCredentials)
	assert.ErrorIs(t, comparePasswordAndHash("secret1", "short"), authsession.ErrInvalidCredentials)
}
