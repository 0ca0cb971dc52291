package portal

import (
	"sync"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultGateGrace     = 2 * time.Second
	DefaultGateSlowAfter = 12 * time.Second
)

// Stage is how far the protected page has loaded.
type Stage string

const (
	StageSession Stage = "session"
	StageProfile Stage = "profile"
	StageReady   Stage = "ready"
)

// Verdict is what a protected route should do with a given state.
type Verdict struct {
	// Redirect is the route to replace the current one with, if any.
	Redirect string
	// Hint is a progress or connectivity message while waiting.
	Hint     string
	Stage    Stage
	Progress int
}

// Routes rendered without the gate. The approve page is gated so only a
// signed-in member can approve.
var ungatedPaths = map[string]bool{
	core.RouteLogin:          true,
	core.RouteDevicePairing:  true,
	core.RouteForgotPassword: true,
	core.RouteResetPassword:  true,
}

// Routes an inactive member may still visit.
var inactiveAllowedPaths = map[string]bool{
	core.RouteDashboard:     true,
	core.RouteDeviceApprove: true,
}

// Gate guards routes that need an active member. It remembers when loading
// settled and when waiting began, so call Evaluate on every state change.
type Gate struct {
	clock        clockwork.Clock
	connectivity core.Connectivity
	grace        time.Duration
	slowAfter    time.Duration

	mu           sync.Mutex
	settledAt    time.Time
	waitingSince time.Time
}

func NewGate(connectivity core.Connectivity, clock clockwork.Clock) *Gate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{
		clock:        clock,
		connectivity: connectivity,
		grace:        DefaultGateGrace,
		slowAfter:    DefaultGateSlowAfter,
	}
}

// Evaluate decides the verdict for path under state. A member without a
// session is only sent to the login page once loading has settled for the
// grace period and no auth issue explains the missing session.
func (g *Gate) Evaluate(state State, path string) Verdict {
	if ungatedPaths[path] {
		return Verdict{Stage: StageReady, Progress: 100}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()

	if state.Loading {
		g.settledAt = time.Time{}
	} else if g.settledAt.IsZero() {
		g.settledAt = now
	}

	var v Verdict
	switch {
	case state.Loading:
		v.Stage, v.Progress = StageSession, 15
	case state.HasSession && state.User == nil:
		v.Stage, v.Progress = StageProfile, 70
	default:
		v.Stage, v.Progress = StageReady, 100
	}

	switch {
	case state.Loading:
	case !state.HasSession:
		if state.AuthIssue == "" && now.Sub(g.settledAt) >= g.grace {
			v.Redirect = core.RouteLogin
		}
	case state.User != nil && state.User.Status != "active" && !inactiveAllowedPaths[path]:
		v.Redirect = core.RouteDashboard
	}

	v.Hint = g.hint(state, now, v.Stage != StageReady)
	return v
}

func (g *Gate) hint(state State, now time.Time, waiting bool) string {
	if state.AuthIssue != "" {
		g.waitingSince = time.Time{}
		return state.AuthIssue
	}
	if !waiting {
		g.waitingSince = time.Time{}
		return ""
	}
	if g.connectivity != nil && !g.connectivity.Online() {
		return HintOffline
	}
	if g.waitingSince.IsZero() {
		g.waitingSince = now
	}
	if now.Sub(g.waitingSince) >= g.slowAfter {
		return HintSlow
	}
	return HintPreparing
}
