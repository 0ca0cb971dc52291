// Package sessiontimer enforces the idle and absolute session windows.
//
// Both windows are anchored to persisted unix-millisecond timestamps
// (auth_session_start and auth_last_activity), so a restarted client resumes
// with the time it had left instead of a fresh window.
package sessiontimer

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultIdleTimeout     = 15 * time.Minute
	DefaultAbsoluteTimeout = 24 * time.Hour

	// minRemaining keeps an already-elapsed window from firing synchronously
	// inside Begin or Resume.
	minRemaining = time.Second
)

// Reason says which window elapsed.
type Reason string

const (
	ReasonIdle     Reason = "idle"
	ReasonAbsolute Reason = "absolute"
)

// ExpireFunc is called once per armed session when a window elapses.
type ExpireFunc func(Reason)

// Option configures a Controller.
type Option func(*Controller)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

func WithAbsoluteTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.absoluteTimeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// armed identifies one scheduled timer. A callback whose token no longer
// matches the controller's current one is stale and does nothing.
type armed struct {
	timer  clockwork.Timer
	reason Reason
}

// Controller owns the idle and absolute deadlines of the current session.
type Controller struct {
	storage         core.Storage
	onExpire        ExpireFunc
	clock           clockwork.Clock
	logger          *zap.Logger
	idleTimeout     time.Duration
	absoluteTimeout time.Duration

	mu               sync.Mutex
	running          bool
	idle             *armed
	absolute         *armed
	idleDeadline     time.Time
	absoluteDeadline time.Time
}

func New(storage core.Storage, onExpire ExpireFunc, opts ...Option) *Controller {
	c := &Controller{
		storage:         storage,
		onExpire:        onExpire,
		clock:           clockwork.NewRealClock(),
		logger:          zap.NewNop(),
		idleTimeout:     DefaultIdleTimeout,
		absoluteTimeout: DefaultAbsoluteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin starts a fresh session: both windows open now.
func (c *Controller) Begin() {
	now := c.clock.Now()
	c.persist(core.KeySessionStart, now)
	c.persist(core.KeyLastActivity, now)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.arm(now, now, now)
}

// Resume re-arms an existing session from the persisted timestamps, falling
// back to now for any that are missing.
func (c *Controller) Resume() {
	now := c.clock.Now()
	start := c.load(core.KeySessionStart, now)
	last := c.load(core.KeyLastActivity, now)
	c.persist(core.KeySessionStart, start)
	c.persist(core.KeyLastActivity, last)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.arm(now, start, last)
}

// Touch records member activity and restarts the idle window. The absolute
// window is untouched. Does nothing while stopped.
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	now := c.clock.Now()
	c.persist(core.KeyLastActivity, now)

	c.disarm(c.idle)
	c.idleDeadline = now.Add(c.idleTimeout)
	c.idle = c.schedule(ReasonIdle, c.idleDeadline.Sub(now))
}

// Stop cancels both timers and keeps the persisted timestamps.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Clear cancels both timers and forgets the persisted timestamps.
func (c *Controller) Clear() {
	c.Stop()
	if err := c.storage.Remove(core.KeySessionStart, core.KeyLastActivity); err != nil {
		c.logger.Warn("failed to clear session timestamps", zap.Error(err))
	}
}

// Running reports whether a session is armed.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Deadlines returns the armed idle and absolute deadlines. Both are zero when
// stopped.
func (c *Controller) Deadlines() (idle, absolute time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return time.Time{}, time.Time{}
	}
	return c.idleDeadline, c.absoluteDeadline
}

func (c *Controller) arm(now, start, last time.Time) {
	c.stopLocked()

	c.running = true
	c.idleDeadline = last.Add(c.idleTimeout)
	c.absoluteDeadline = start.Add(c.absoluteTimeout)
	c.idle = c.schedule(ReasonIdle, c.idleDeadline.Sub(now))
	c.absolute = c.schedule(ReasonAbsolute, c.absoluteDeadline.Sub(now))
}

func (c *Controller) schedule(reason Reason, remaining time.Duration) *armed {
	if remaining < minRemaining {
		remaining = minRemaining
	}
	a := &armed{reason: reason}
	// The callback hops to its own goroutine so it never runs under a lock
	// held by the clock.
	a.timer = c.clock.AfterFunc(remaining, func() { go c.fire(a) })
	return a
}

func (c *Controller) fire(a *armed) {
	c.mu.Lock()
	if !c.running || (a != c.idle && a != c.absolute) {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.mu.Unlock()

	c.logger.Info("session window elapsed", zap.String("reason", string(a.reason)))
	if c.onExpire != nil {
		c.onExpire(a.reason)
	}
}

func (c *Controller) stopLocked() {
	c.disarm(c.idle)
	c.disarm(c.absolute)
	c.idle, c.absolute = nil, nil
	c.running = false
	c.idleDeadline, c.absoluteDeadline = time.Time{}, time.Time{}
}

func (c *Controller) disarm(a *armed) {
	if a != nil {
		a.timer.Stop()
	}
}

func (c *Controller) load(key string, fallback time.Time) time.Time {
	raw, err := c.storage.Get(key)
	if err != nil {
		if !errors.Is(err, core.ErrStorageKeyNotFound) {
			c.logger.Warn("failed to read session timestamp", zap.String("key", key), zap.Error(err))
		}
		return fallback
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		c.logger.Warn("ignoring malformed session timestamp", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return time.UnixMilli(ms)
}

func (c *Controller) persist(key string, t time.Time) {
	if err := c.storage.Set(key, strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		c.logger.Warn("failed to persist session timestamp", zap.String("key", key), zap.Error(err))
	}
}
