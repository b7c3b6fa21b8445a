package authsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Provider is the session context provider. It mirrors the identity
// provider's session into an AuthState, derives IsAdmin from the profile
// lookup and forwards actions to the identity provider.
type Provider struct {
	idp          IdentityProvider
	profiles     ProfileLookup
	cfg          Config
	logger       Logger
	activitySink ActivitySink
	tracer       trace.Tracer

	mu       sync.Mutex
	state    AuthState
	resolved bool
	ready    chan struct{}
	mounted  bool
	epoch    uint64
	sub      Subscription
	baseCtx  context.Context
	cancel   context.CancelFunc

	// generation tags profile lookups; results from older generations are dropped
	generation   uint64
	lookupCancel context.CancelFunc
	lookupDone   chan struct{}
	lookups      sync.WaitGroup

	listenerSeq uint64
	listeners   []listenerEntry
	pending     []AuthState
	dispatching bool
}

type listenerEntry struct {
	id uint64
	fn func(AuthState)
}

type lookupJob struct {
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
	epoch      uint64
	userID     string
}

// NewProvider returns a Provider bound to the given identity provider and
// profile lookup. A nil cfg uses DefaultOptions.
func NewProvider(idp IdentityProvider, profiles ProfileLookup, cfg Config) *Provider {
	if idp == nil {
		panic("Missing IdentityProvider in session provider...")
	}

	if cfg == nil {
		cfg = DefaultOptions()
	}

	if profiles == nil {
		profiles = ProfileLookupFunc(nil)
	}

	return &Provider{
		idp:          idp,
		profiles:     profiles,
		cfg:          cfg,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		tracer:       newTracer(nil),
		state:        initialState(),
		ready:        make(chan struct{}),
	}
}

func (p *Provider) WithLogger(logger Logger) *Provider {
	if logger == nil {
		logger = defLogger{}
	}
	p.logger = logger
	return p
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (p *Provider) WithActivitySink(sink ActivitySink) *Provider {
	p.activitySink = normalizeActivitySink(sink)
	return p
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for action
// and lookup spans. The global provider is used by default.
func (p *Provider) WithTracerProvider(tp trace.TracerProvider) *Provider {
	p.tracer = newTracer(tp)
	return p
}

// Mount registers the change subscription and then fetches the current
// session once. The subscription is registered first so that events fired
// while the fetch is in flight are not missed.
func (p *Provider) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return nil
	}

	if p.resolved {
		p.state = initialState()
		p.resolved = false
		p.ready = make(chan struct{})
	}

	p.epoch++
	epoch := p.epoch
	p.mounted = true
	p.baseCtx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.mu.Unlock()

	sub := p.idp.OnSessionChange(func(event ChangeEvent, session *Session) {
		p.apply(epoch, event, session)
	})

	p.mu.Lock()
	if !p.mounted || p.epoch != epoch {
		p.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return ErrNotMounted
	}
	p.sub = sub
	p.mu.Unlock()

	ctx, span := p.startSpan(ctx, "GetCurrentSession")
	session, err := p.idp.GetCurrentSession(ctx)
	endSpan(span, err)
	if err != nil {
		p.logger.Error("initial session fetch error, continuing signed out: %v", err)
		session = nil
	}

	p.apply(epoch, EventInitialSession, session)
	return nil
}

// Unmount releases the subscription and cancels in-flight profile lookups.
// It is safe to call more than once.
func (p *Provider) Unmount() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}

	p.mounted = false
	p.epoch++
	p.generation++
	sub := p.sub
	p.sub = nil
	if p.lookupCancel != nil {
		p.lookupCancel()
		p.lookupCancel = nil
	}
	cancel := p.cancel
	p.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}

	p.lookups.Wait()
}

// Mounted reports whether the provider holds a live subscription
func (p *Provider) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// State returns a snapshot of the current session state
func (p *Provider) State() AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Provider) User() *User {
	return p.State().User
}

func (p *Provider) Session() *Session {
	return p.State().Session
}

func (p *Provider) IsLoading() bool {
	return p.State().IsLoading
}

// Loading is an alias of IsLoading
func (p *Provider) Loading() bool {
	return p.IsLoading()
}

func (p *Provider) IsAdmin() bool {
	return p.State().IsAdmin
}

// Ready returns a channel closed once the first session resolution has been
// applied, i.e. when IsLoading turns false.
func (p *Provider) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// AwaitLookup blocks until the most recent profile lookup has finished,
// including lookups started while waiting. It returns immediately when no
// lookup was ever started.
func (p *Provider) AwaitLookup(ctx context.Context) error {
	for {
		p.mu.Lock()
		done := p.lookupDone
		p.mu.Unlock()

		if done == nil {
			return nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		p.mu.Lock()
		latest := p.lookupDone
		p.mu.Unlock()
		if latest == done {
			return nil
		}
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots are delivered in the order the changes were applied.
func (p *Provider) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	p.listenerSeq++
	id := p.listenerSeq
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, l := range p.listeners {
				if l.id == id {
					p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SignIn delegates a password sign-in to the identity provider. Failures
// are returned; on success the change subscription updates the state.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	ctx, span := p.startSpan(ctx, "SignIn")

	req := SignInRequest{Email: normalizeEmail(email), Password: password}
	if err := req.Validate(); err != nil {
		err = validationError(err, "sign_in")
		p.emitActivity(ctx, ActivityEventSignInFailure, "", req.Email, map[string]any{"error": err.Error()})
		endSpan(span, err)
		return err
	}

	err := p.idp.SignInWithPassword(ctx, Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		err = asAuthError(err, "sign_in")
		p.logger.Info("sign in rejected for %s: %v", req.Email, err)
		p.emitActivity(ctx, ActivityEventSignInFailure, "", req.Email, map[string]any{"error": err.Error()})
		endSpan(span, err)
		return err
	}

	p.emitActivity(ctx, ActivityEventSignInSuccess, "", req.Email, nil)
	endSpan(span, nil)
	return nil
}

// SignUp delegates registration to the identity provider, attaching
// fullName as profile metadata and the application origin as the
// post-confirmation redirect target.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) error {
	ctx, span := p.startSpan(ctx, "SignUp")

	req := SignUpRequest{Email: normalizeEmail(email), Password: password, FullName: fullName}
	if err := req.Validate(); err != nil {
		err = validationError(err, "sign_up")
		p.emitActivity(ctx, ActivityEventSignUpFailure, "", req.Email, map[string]any{"error": err.Error()})
		endSpan(span, err)
		return err
	}

	opts := SignUpOptions{
		RedirectTarget: RedirectTarget(p.cfg),
		Data: map[string]any{
			MetadataFullName: req.FullName,
		},
	}

	err := p.idp.SignUp(ctx, Credentials{Email: req.Email, Password: req.Password}, opts)
	if err != nil {
		err = asAuthError(err, "sign_up")
		p.logger.Info("sign up rejected for %s: %v", req.Email, err)
		p.emitActivity(ctx, ActivityEventSignUpFailure, "", req.Email, map[string]any{"error": err.Error()})
		endSpan(span, err)
		return err
	}

	p.emitActivity(ctx, ActivityEventSignUpSuccess, "", req.Email, map[string]any{
		"redirect_target": opts.RedirectTarget,
	})
	endSpan(span, nil)
	return nil
}

// SignOut delegates to the identity provider and discards local
// credentials. Provider errors are logged and swallowed; the state is
// signed out once SignOut returns.
func (p *Provider) SignOut(ctx context.Context) {
	ctx, span := p.startSpan(ctx, "SignOut")

	p.mu.Lock()
	epoch := p.epoch
	userID := p.state.UserID()
	p.mu.Unlock()

	meta := map[string]any{}
	err := p.idp.SignOut(ctx)
	if err != nil {
		p.logger.Warn("sign out error discarded: %v", err)
		meta["error"] = err.Error()
	}

	p.apply(epoch, EventSignedOut, nil)

	p.emitActivity(ctx, ActivityEventSignOut, userID, "", meta)
	endSpan(span, err)
}

// apply is the single write path for both producers: the change
// subscription and the initial fetch. The last applied write wins.
func (p *Provider) apply(epoch uint64, event ChangeEvent, session *Session) {
	if session != nil && session.User == nil {
		p.logger.Warn("session without user on %s, treating as signed out", event)
		session = nil
	}

	p.mu.Lock()
	if !p.mounted || p.epoch != epoch {
		p.mu.Unlock()
		return
	}

	prevUserID := p.state.UserID()

	p.state.Session = session
	p.state.User = nil
	if session != nil {
		p.state.User = session.User
	}
	p.state.IsLoading = false

	if !p.resolved {
		p.resolved = true
		close(p.ready)
	}

	var job *lookupJob
	if userID := p.state.UserID(); userID == "" {
		p.supersedeLookupLocked()
		p.state.IsAdmin = false
	} else {
		if userID != prevUserID {
			p.state.IsAdmin = false
		}
		job = p.beginLookupLocked(userID)
	}

	p.pending = append(p.pending, p.state)
	p.mu.Unlock()

	p.logger.Debug("applied %s user=%q", event, sessionUserID(session))

	if job != nil {
		go p.runLookup(job)
	}

	p.flush()
}

// supersedeLookupLocked invalidates any in-flight lookup. p.mu must be held.
func (p *Provider) supersedeLookupLocked() {
	p.generation++
	if p.lookupCancel != nil {
		p.lookupCancel()
		p.lookupCancel = nil
	}
}

// beginLookupLocked supersedes the previous lookup and prepares a new one
// for userID. p.mu must be held.
func (p *Provider) beginLookupLocked(userID string) *lookupJob {
	p.supersedeLookupLocked()

	ctx, cancel := context.WithTimeout(p.baseCtx, p.lookupTimeout())
	done := make(chan struct{})
	p.lookupCancel = cancel
	p.lookupDone = done
	p.lookups.Add(1)

	return &lookupJob{
		ctx:        ctx,
		cancel:     cancel,
		done:       done,
		generation: p.generation,
		epoch:      p.epoch,
		userID:     userID,
	}
}

func (p *Provider) runLookup(job *lookupJob) {
	defer p.lookups.Done()
	defer close(job.done)
	defer job.cancel()

	ctx, span := p.startSpan(job.ctx, "LookupProfile", attribute.String("user.id", job.userID))
	profile, err := p.lookupProfile(ctx, job.userID)
	isAdmin := err == nil && profileGrants(profile, UserRole(p.cfg.GetAdminRole()))
	span.SetAttributes(attribute.Bool("session.is_admin", isAdmin))
	endSpan(span, err)

	if err != nil {
		p.logger.Debug("profile lookup for %s failed closed: %v", job.userID, err)
	}

	p.mu.Lock()
	if job.generation != p.generation || job.epoch != p.epoch || p.state.UserID() != job.userID {
		p.mu.Unlock()
		p.logger.Debug("discarding stale profile lookup for %s", job.userID)
		return
	}

	p.lookupCancel = nil
	changed := p.state.IsAdmin != isAdmin
	p.state.IsAdmin = isAdmin
	if changed {
		p.pending = append(p.pending, p.state)
	}
	p.mu.Unlock()

	if changed {
		p.flush()
	}

	p.emitActivity(ctx, ActivityEventAdminResolved, job.userID, "", map[string]any{
		"is_admin": isAdmin,
	})
}

// lookupProfile converts a panicking lookup into an error so it fails closed.
func (p *Provider) lookupProfile(ctx context.Context, userID string) (profile *Profile, err error) {
	defer func() {
		if r := recover(); r != nil {
			profile = nil
			err = fmt.Errorf("profile lookup panic: %v", r)
		}
	}()

	profile, err = p.profiles.LookupProfile(ctx, userID)
	if err == nil && profile == nil {
		err = ErrProfileNotFound
	}
	return profile, err
}

// flush delivers pending snapshots to listeners. Only one goroutine
// dispatches at a time, so listeners observe changes in apply order;
// re-entrant changes made from a listener are queued and delivered after.
func (p *Provider) flush() {
	p.mu.Lock()
	if p.dispatching {
		p.mu.Unlock()
		return
	}
	p.dispatching = true

	for len(p.pending) > 0 {
		batch := p.pending
		p.pending = nil
		listeners := make([]func(AuthState), 0, len(p.listeners))
		for _, l := range p.listeners {
			listeners = append(listeners, l.fn)
		}
		p.mu.Unlock()

		for _, snapshot := range batch {
			for _, fn := range listeners {
				fn(snapshot)
			}
		}

		p.mu.Lock()
	}

	p.dispatching = false
	p.mu.Unlock()
}

func (p *Provider) lookupTimeout() time.Duration {
	if timeout := p.cfg.GetLookupTimeout(); timeout > 0 {
		return timeout
	}
	return DefaultLookupTimeout
}

func (p *Provider) emitActivity(ctx context.Context, eventType ActivityEventType, userID, email string, metadata map[string]any) {
	sink := normalizeActivitySink(p.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Email:      email,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		p.logger.Warn("activity sink record error: %v", err)
	}
}

func sessionUserID(session *Session) string {
	return session.UserID()
}
