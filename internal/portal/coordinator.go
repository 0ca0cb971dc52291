// Package portal is the member-side session coordinator: the single source of
// truth for who is signed in, whether their profile is loaded, and why the
// session ended.
package portal

import (
	"context"
	"sync"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/sessiontimer"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultSessionFetchTimeout = 30 * time.Second
	DefaultProfileFetchTimeout = 30 * time.Second
	DefaultProfileCacheTTL     = 2 * time.Minute
	DefaultVerifyInterval      = time.Minute
)

// State is a snapshot of the member's auth state.
type State struct {
	User       *core.Profile
	HasSession bool
	Loading    bool
	// AuthIssue is a user-facing explanation of why the session or profile
	// could not be loaded. Empty when there is nothing to report.
	AuthIssue string
	// Notice is the banner text for session-level events such as a forced
	// logout. It outlives sign-out.
	Notice string
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Deps are the collaborators a Coordinator orchestrates.
type Deps struct {
	Identity  core.IdentityProvider
	Devices   core.DeviceRegistry
	Profiles  core.ProfileSource
	Storage   core.Storage
	Navigator core.Navigator
	// Connectivity may be nil, in which case the network is assumed up.
	Connectivity core.Connectivity
	UserAgent    string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithSessionFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.sessionFetchTimeout = d }
}

func WithProfileFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.profileFetchTimeout = d }
}

func WithProfileCacheTTL(d time.Duration) Option {
	return func(c *Coordinator) { c.profileCacheTTL = d }
}

// WithVerifyInterval sets how long a completed device check covers token
// refreshes for the same member.
func WithVerifyInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.verifyInterval = d }
}

// WithTimerOptions forwards options to the session timer controller.
func WithTimerOptions(opts ...sessiontimer.Option) Option {
	return func(c *Coordinator) { c.timerOpts = append(c.timerOpts, opts...) }
}

// Coordinator orchestrates sign-in, session bootstrap, device verification
// and profile caching.
type Coordinator struct {
	deps                Deps
	clock               clockwork.Clock
	logger              *zap.Logger
	sessionFetchTimeout time.Duration
	profileFetchTimeout time.Duration
	profileCacheTTL     time.Duration
	verifyInterval      time.Duration
	timerOpts           []sessiontimer.Option
	timers              *sessiontimer.Controller

	life     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int
	started     bool
	unsubscribe func()
	bootCancel  context.CancelFunc
	bootAborted bool

	// Session scope: the member the current session belongs to, bumped on
	// every sign-out or member switch so late results can be discarded.
	sessionUser string
	generation  uint64
	sessCtx     context.Context
	endSession  context.CancelFunc

	verifying    map[string]bool
	lastVerified map[string]time.Time
}

func New(deps Deps, opts ...Option) *Coordinator {
	c := &Coordinator{
		deps:                deps,
		clock:               clockwork.NewRealClock(),
		logger:              zap.NewNop(),
		sessionFetchTimeout: DefaultSessionFetchTimeout,
		profileFetchTimeout: DefaultProfileFetchTimeout,
		profileCacheTTL:     DefaultProfileCacheTTL,
		verifyInterval:      DefaultVerifyInterval,
		state:               State{Loading: true},
		subscribers:         make(map[int]func(State)),
		verifying:           make(map[string]bool),
		lastVerified:        make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.life, c.shutdown = context.WithCancel(context.Background())
	c.sessCtx, c.endSession = context.WithCancel(c.life)
	c.timers = sessiontimer.New(deps.Storage, c.onExpire,
		append([]sessiontimer.Option{
			sessiontimer.WithClock(c.clock),
			sessiontimer.WithLogger(c.logger.Named("timer")),
		}, c.timerOpts...)...,
	)
	return c
}

// Start bootstraps the session and subscribes to identity-provider changes.
// It returns once the session check has resolved; profile loading and device
// verification continue in the background. Calling Start twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.bootstrap(ctx)

	unsubscribe := c.deps.Identity.OnAuthStateChange(c.handleAuthChange)
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close unsubscribes, stops the timers without forgetting their persisted
// timestamps and waits for background work.
func (c *Coordinator) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.timers.Stop()
	c.shutdown()
	c.wg.Wait()
}

// State returns a snapshot of the current auth state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe calls fn with every new state until the returned function is
// called.
func (c *Coordinator) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// SessionContext is cancelled when the current session ends. Pairing polls
// run under it so signing out stops them.
func (c *Coordinator) SessionContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessCtx
}

// SignIn authenticates with the identity provider and opens fresh idle and
// absolute windows. The profile is loaded by the resulting auth-state change.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) error {
	session, err := c.deps.Identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	if session == nil {
		return core.ErrNoSession
	}
	c.timers.Begin()
	c.logger.Info("member signed in", zap.String("user_id", session.UserID))
	return nil
}

// SignOut clears local state first, then tells the identity provider.
// Provider errors are logged, never returned.
func (c *Coordinator) SignOut(ctx context.Context) {
	c.signOutLocal()
	if err := c.deps.Identity.SignOut(ctx); err != nil {
		c.logger.Error("sign out error", zap.Error(err))
	}
}

func (c *Coordinator) signOutLocal() {
	c.mu.Lock()
	c.resetSessionLocked("")
	c.state.User = nil
	c.state.HasSession = false
	c.mu.Unlock()
	c.publish()

	c.timers.Clear()
	c.clearCachedProfile()
}

// Activity records member activity, restarting the idle window.
func (c *Coordinator) Activity() {
	c.timers.Touch()
}

// SetOnline reports a connectivity change. Going offline while the session
// check is still loading abandons it.
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	var abort context.CancelFunc
	if online {
		c.state.Notice = ""
		c.state.AuthIssue = ""
	} else {
		c.state.Notice = MsgOffline
		c.state.AuthIssue = MsgOffline
		if c.state.Loading {
			c.state.Loading = false
			c.state.HasSession = false
			c.state.User = nil
			c.bootAborted = true
			abort = c.bootCancel
		}
	}
	c.mu.Unlock()

	if abort != nil {
		abort()
	}
	c.publish()
}

// Windows returns the armed idle and absolute deadlines, zero when no
// session is running.
func (c *Coordinator) Windows() (idle, absolute time.Time) {
	return c.timers.Deadlines()
}

// UpdatePassword changes the signed-in member's password.
func (c *Coordinator) UpdatePassword(ctx context.Context, password string) error {
	if !c.State().HasSession {
		return core.ErrNoSession
	}
	return c.deps.Identity.UpdatePassword(ctx, password)
}

func (c *Coordinator) onExpire(reason sessiontimer.Reason) {
	notice := MsgIdleLogout
	if reason == sessiontimer.ReasonAbsolute {
		notice = MsgAbsoluteLogout
	}
	c.logger.Info("forcing logout", zap.String("reason", string(reason)))

	c.mu.Lock()
	c.state.Notice = notice
	c.mu.Unlock()

	c.SignOut(c.life)
	c.deps.Navigator.Replace(core.RouteLogin)
}

func (c *Coordinator) online() bool {
	return c.deps.Connectivity == nil || c.deps.Connectivity.Online()
}

// update applies fn under the lock and notifies subscribers.
func (c *Coordinator) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.publish()
}

func (c *Coordinator) publish() {
	c.mu.Lock()
	state := c.state.clone()
	subs := make([]func(State), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// resetSessionLocked ends the current session scope and starts one for
// userID. Callers hold c.mu.
func (c *Coordinator) resetSessionLocked(userID string) {
	c.endSession()
	c.sessionUser = userID
	c.generation++
	c.sessCtx, c.endSession = context.WithCancel(c.life)
}

// goBackground runs fn tracked by Close.
func (c *Coordinator) goBackground(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}
