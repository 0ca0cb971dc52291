// Package pairing drives the two halves of device pairing: the new device
// that displays a code and waits, and the bound device that approves it.
package pairing

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often a displayed code is re-read.
const DefaultPollInterval = 3 * time.Second

var (
	ErrNoDeviceID = errors.New("device id not found")
	ErrNoSession  = errors.New("session is not valid, please sign in again")
)

// Phase is the state of the pairing screen.
type Phase string

const (
	PhaseLoading     Phase = "loading"
	PhaseDisplayCode Phase = "display_code"
	PhaseApproved    Phase = "approved"
	PhaseRejected    Phase = "rejected"
	PhaseExpired     Phase = "expired"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether the flow stops in this phase.
func (p Phase) Terminal() bool {
	return p != PhaseLoading && p != PhaseDisplayCode
}

// View is what the pairing screen renders.
type View struct {
	Phase     Phase
	Code      string
	Display   string
	Status    core.PairingStatus
	ExpiresAt time.Time
	Err       error
}

// Request identifies the unbound device asking to be paired.
type Request struct {
	UserID    string
	DeviceID  string
	Label     string
	UserAgent string
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

func WithClock(clock clockwork.Clock) FlowOption {
	return func(f *Flow) { f.clock = clock }
}

func WithPollInterval(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d > 0 {
			f.interval = d
		}
	}
}

func WithLogger(logger *zap.Logger) FlowOption {
	return func(f *Flow) { f.logger = logger }
}

// WithObserver receives every view the flow emits.
func WithObserver(fn func(View)) FlowOption {
	return func(f *Flow) { f.observer = fn }
}

// Flow runs the new-device side of pairing.
type Flow struct {
	registry  core.DeviceRegistry
	pairings  core.PairingService
	navigator core.Navigator
	clock     clockwork.Clock
	interval  time.Duration
	logger    *zap.Logger
	observer  func(View)
}

func NewFlow(
	registry core.DeviceRegistry,
	pairings core.PairingService,
	navigator core.Navigator,
	opts ...FlowOption,
) *Flow {
	f := &Flow{
		registry:  registry,
		pairings:  pairings,
		navigator: navigator,
		clock:     clockwork.NewRealClock(),
		interval:  DefaultPollInterval,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run obtains a code for the device and polls it until it is approved,
// rejected or expired. A failed code creation ends in PhaseFailed and may be
// retried by calling Run again. Cancelling ctx stops polling and returns
// ctx.Err() with the last view.
func (f *Flow) Run(ctx context.Context, req Request) (View, error) {
	view := View{Phase: PhaseLoading, Display: FormatCode("")}
	f.emit(view)

	switch {
	case req.UserID == "":
		f.navigator.Replace(core.RouteLogin)
		return f.fail(view, ErrNoSession), nil
	case req.DeviceID == "":
		return f.fail(view, ErrNoDeviceID), nil
	}

	binding, err := f.registry.CheckBinding(ctx, req.UserID, req.DeviceID)
	if err != nil {
		f.logger.Warn("device binding lookup failed, requesting a code",
			zap.String("device_id", req.DeviceID), zap.Error(err))
	}
	if binding != nil && !binding.Revoked {
		view.Phase = PhaseApproved
		f.emit(view)
		f.navigator.Replace(core.RouteDashboard)
		return view, nil
	}

	pending, err := f.pairings.FindActivePairing(ctx, req.DeviceID)
	if err != nil {
		f.logger.Warn("active pairing lookup failed", zap.String("device_id", req.DeviceID), zap.Error(err))
	}
	if pending != nil && pending.Code != "" {
		view = f.displayed(view, pending.Code)
		view.Status = pending.Status
		view.ExpiresAt = pending.ExpiresAt
	} else {
		code, err := f.pairings.CreatePairingCode(ctx, req.DeviceID, req.Label, req.UserAgent)
		if err != nil {
			return f.fail(view, err), nil
		}
		view = f.displayed(view, code)
		view.Status = core.PairingPending
	}
	f.emit(view)

	return f.poll(ctx, view)
}

func (f *Flow) poll(ctx context.Context, view View) (View, error) {
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-ticker.Chan():
		}

		latest, err := f.pairings.PollStatus(ctx, view.Code)
		if err != nil || latest == nil {
			if ctx.Err() != nil {
				return view, ctx.Err()
			}
			f.logger.Debug("pairing poll failed", zap.String("code", view.Code), zap.Error(err))
		} else if latest.Status != view.Status || !latest.ExpiresAt.Equal(view.ExpiresAt) {
			view.Status = latest.Status
			view.ExpiresAt = latest.ExpiresAt
			f.emit(view)
		}

		switch {
		case view.Status == core.PairingApproved:
			view.Phase = PhaseApproved
			f.emit(view)
			f.navigator.Replace(core.RouteDashboard)
			return view, nil
		case view.Status == core.PairingRejected:
			view.Phase = PhaseRejected
			f.emit(view)
			return view, nil
		case view.Status == core.PairingExpired, f.expired(view):
			view.Phase = PhaseExpired
			f.emit(view)
			return view, nil
		}
	}
}

func (f *Flow) expired(view View) bool {
	return !view.ExpiresAt.IsZero() && view.ExpiresAt.Before(f.clock.Now())
}

func (f *Flow) displayed(view View, code string) View {
	view.Phase = PhaseDisplayCode
	view.Code = code
	view.Display = FormatCode(code)
	return view
}

func (f *Flow) fail(view View, err error) View {
	view.Phase = PhaseFailed
	view.Err = err
	f.emit(view)
	return view
}

func (f *Flow) emit(view View) {
	if f.observer != nil {
		f.observer(view)
	}
}
