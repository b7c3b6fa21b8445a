package authsession

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// fakeIdentityProvider embeds Emitter so tests can push changes directly.
type fakeIdentityProvider struct {
	Emitter

	mu         sync.Mutex
	session    *Session
	fetchErr   error
	signInErr  error
	signUpErr  error
	signOutErr error

	// beforeFetch runs inside GetCurrentSession, before the result is returned
	beforeFetch func()

	signInCalls  []Credentials
	signUpCalls  []SignUpOptions
	signOutCalls int
	order        []string
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{}
}

func (f *fakeIdentityProvider) OnSessionChange(fn SessionChangeFunc) Subscription {
	f.record("subscribe")
	return f.Emitter.OnSessionChange(fn)
}

func (f *fakeIdentityProvider) GetCurrentSession(ctx context.Context) (*Session, error) {
	f.record("fetch")
	if f.beforeFetch != nil {
		f.beforeFetch()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.fetchErr
}

func (f *fakeIdentityProvider) SignInWithPassword(ctx context.Context, creds Credentials) error {
	f.mu.Lock()
	f.signInCalls = append(f.signInCalls, creds)
	err := f.signInErr
	session := f.session
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.Emit(EventSignedIn, session)
	return nil
}

func (f *fakeIdentityProvider) SignUp(ctx context.Context, creds Credentials, opts SignUpOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUpCalls = append(f.signUpCalls, opts)
	return f.signUpErr
}

func (f *fakeIdentityProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	err := f.signOutErr
	f.mu.Unlock()
	return err
}

func (f *fakeIdentityProvider) setSession(session *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
}

func (f *fakeIdentityProvider) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, step)
}

func (f *fakeIdentityProvider) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// MockProfileLookup implements ProfileLookup
type MockProfileLookup struct {
	mock.Mock
}

func (m *MockProfileLookup) LookupProfile(ctx context.Context, userID string) (*Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*Profile)
	return profile, args.Error(1)
}

// blockingLookup holds every lookup until the test releases it.
type blockingLookup struct {
	mu      sync.Mutex
	calls   map[string]chan struct{}
	results map[string]*Profile
	started chan string
}

func newBlockingLookup() *blockingLookup {
	return &blockingLookup{
		calls:   map[string]chan struct{}{},
		results: map[string]*Profile{},
		started: make(chan string, 16),
	}
}

func (b *blockingLookup) set(userID string, role UserRole) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[userID] = &Profile{ID: userID, Role: role}
	if _, ok := b.calls[userID]; !ok {
		b.calls[userID] = make(chan struct{})
	}
}

func (b *blockingLookup) release(userID string) {
	b.mu.Lock()
	ch := b.calls[userID]
	b.mu.Unlock()
	close(ch)
}

func (b *blockingLookup) LookupProfile(ctx context.Context, userID string) (*Profile, error) {
	b.mu.Lock()
	ch := b.calls[userID]
	profile := b.results[userID]
	b.mu.Unlock()

	b.started <- userID

	select {
	case <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func sessionFor(userID string) *Session {
	return &Session{
		AccessToken: "token-" + userID,
		User:        &User{ID: userID, Email: userID + "@example.com"},
	}
}

func lookupFunc(roles map[string]UserRole) ProfileLookupFunc {
	return func(ctx context.Context, userID string) (*Profile, error) {
		role, ok := roles[userID]
		if !ok {
			return nil, ErrProfileNotFound
		}
		return &Profile{ID: userID, Role: role}, nil
	}
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
