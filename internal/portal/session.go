package portal

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"go.uber.org/zap"
)

var errEmptyProfile = errors.New("profile source returned no profile")

func (c *Coordinator) bootstrap(ctx context.Context) {
	if !c.online() {
		c.logger.Warn("no network connection, skipping session check")
		c.update(func(s *State) {
			s.Notice = MsgOffline
			s.AuthIssue = MsgOffline
			s.HasSession = false
			s.User = nil
			s.Loading = false
		})
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.sessionFetchTimeout)
	defer cancel()
	c.mu.Lock()
	c.bootCancel = cancel
	c.mu.Unlock()

	session, err := awaitResult(fetchCtx, c.deps.Identity.GetSession)

	c.mu.Lock()
	c.bootCancel = nil
	aborted := c.bootAborted
	c.mu.Unlock()
	if aborted {
		return
	}

	if err != nil {
		issue := MsgAuthError
		timedOut := errors.Is(err, context.DeadlineExceeded)
		if timedOut {
			issue = MsgSessionTimeout
			c.logger.Error("session check timed out, check the network connection",
				zap.Duration("timeout", c.sessionFetchTimeout))
		} else {
			c.logger.Error("session check failed", zap.Error(err))
		}
		c.update(func(s *State) {
			if timedOut {
				s.Notice = issue
			}
			s.AuthIssue = issue
			s.HasSession = false
			s.User = nil
			s.Loading = false
		})
		return
	}

	c.applySession(core.EventInitialSession, session, true)
}

func (c *Coordinator) handleAuthChange(event core.AuthEvent, session *core.AuthSession) {
	c.logger.Debug("auth state changed", zap.String("event", string(event)))
	c.applySession(event, session, false)
}

// applySession reconciles local state with the provider's session: paint the
// cached profile, verify the device, refresh a stale profile and resume the
// session windows.
func (c *Coordinator) applySession(event core.AuthEvent, session *core.AuthSession, bootstrap bool) {
	if session == nil || session.UserID == "" {
		c.mu.Lock()
		if c.sessionUser != "" {
			c.resetSessionLocked("")
		}
		c.state.User = nil
		c.state.HasSession = false
		c.state.Loading = false
		if bootstrap {
			c.state.AuthIssue = ""
		}
		c.mu.Unlock()
		c.publish()
		c.timers.Stop()
		return
	}

	userID := session.UserID
	cached, cachedAt := c.cachedProfile()
	cacheMatches := cached != nil && cached.ID == userID

	c.mu.Lock()
	if c.sessionUser != userID {
		c.resetSessionLocked(userID)
	}
	gen := c.generation
	c.state.HasSession = true
	c.state.Loading = false
	if bootstrap {
		c.state.AuthIssue = ""
	}
	switch {
	case cacheMatches:
		c.state.User = cached
	case c.state.User != nil && c.state.User.ID != userID:
		c.state.User = nil
	}
	c.mu.Unlock()
	c.publish()

	// Windows are armed before any check that may sign out, so a sign-out
	// always finds them running and clears them.
	c.timers.Resume()
	if !c.currentGeneration(gen) {
		c.timers.Clear()
		return
	}

	c.scheduleVerify(event, userID)

	fresh := !cachedAt.IsZero() && c.clock.Since(cachedAt) <= c.profileCacheTTL
	if !cacheMatches || !fresh {
		c.goBackground(func() { c.refreshProfile(userID, gen, cacheMatches) })
	}
}

func (c *Coordinator) currentGeneration(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// refreshProfile loads the member row and applies it only if the session it
// was issued for is still current.
func (c *Coordinator) refreshProfile(userID string, gen uint64, cacheMatches bool) {
	ctx, cancel := context.WithTimeout(c.scopeFor(gen), c.profileFetchTimeout)
	defer cancel()

	profile, err := awaitResult(ctx, func(ctx context.Context) (*core.Profile, error) {
		return c.deps.Profiles.FetchProfile(ctx, userID)
	})
	if err == nil && profile == nil {
		err = errEmptyProfile
	}

	c.mu.Lock()
	if c.generation != gen || c.sessionUser != userID {
		c.mu.Unlock()
		c.logger.Debug("discarding profile for a session that has ended", zap.String("user_id", userID))
		return
	}
	if err != nil {
		if !cacheMatches {
			c.state.User = nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.state.AuthIssue = MsgProfileTimeout
		} else {
			c.state.AuthIssue = MsgProfileFailed
		}
	} else {
		c.state.User = profile
		c.state.AuthIssue = ""
	}
	c.mu.Unlock()
	c.publish()

	if err != nil {
		c.logger.Error("failed to fetch member profile", zap.String("user_id", userID), zap.Error(err))
		return
	}
	c.storeCachedProfile(profile)
}

// scopeFor returns the session context when gen is still current, or an
// already cancelled context otherwise.
func (c *Coordinator) scopeFor(gen uint64) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		return c.sessCtx
	}
	ctx, cancel := context.WithCancel(c.life)
	cancel()
	return ctx
}

func (c *Coordinator) cachedProfile() (*core.Profile, time.Time) {
	raw, err := c.deps.Storage.Get(core.KeyCachedUser)
	if err != nil || raw == "" {
		return nil, time.Time{}
	}
	var profile core.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		c.logger.Warn("ignoring unreadable cached profile", zap.Error(err))
		return nil, time.Time{}
	}

	var at time.Time
	if rawAt, err := c.deps.Storage.Get(core.KeyCachedUserAt); err == nil {
		if ms, err := strconv.ParseInt(rawAt, 10, 64); err == nil && ms > 0 {
			at = time.UnixMilli(ms)
		}
	}
	return &profile, at
}

func (c *Coordinator) storeCachedProfile(profile *core.Profile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		c.logger.Warn("failed to encode profile for cache", zap.Error(err))
		return
	}
	if err := c.deps.Storage.Set(core.KeyCachedUser, string(raw)); err != nil {
		c.logger.Warn("failed to cache profile", zap.Error(err))
		return
	}
	at := strconv.FormatInt(c.clock.Now().UnixMilli(), 10)
	if err := c.deps.Storage.Set(core.KeyCachedUserAt, at); err != nil {
		c.logger.Warn("failed to cache profile timestamp", zap.Error(err))
	}
}

func (c *Coordinator) clearCachedProfile() {
	if err := c.deps.Storage.Remove(core.KeyCachedUser, core.KeyCachedUserAt); err != nil {
		c.logger.Warn("failed to clear cached profile", zap.Error(err))
	}
}

// awaitResult races fn against ctx so a collaborator that ignores
// cancellation still cannot hold the caller past the deadline.
func awaitResult[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
