package pairing

import (
	"context"

	"github.com/go-authgate/memberguard/internal/core"

	"go.uber.org/zap"
)

// SignOuter ends the local session. It never fails.
type SignOuter interface {
	SignOut(ctx context.Context)
}

// Approver runs the bound-device side of pairing.
type Approver struct {
	pairings  core.PairingService
	session   SignOuter
	navigator core.Navigator
	logger    *zap.Logger
}

func NewApprover(
	pairings core.PairingService,
	session SignOuter,
	navigator core.Navigator,
	logger *zap.Logger,
) *Approver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Approver{pairings: pairings, session: session, navigator: navigator, logger: logger}
}

// Approve authorizes the device showing the entered code. Approval moves the
// account to the new device, so this device is signed out and sent to the
// login page afterwards. Server errors are returned for display and leave
// the session alone.
func (a *Approver) Approve(ctx context.Context, entered string) error {
	code := SanitizeCode(entered)
	if code == "" {
		return ErrEmptyCode
	}

	if err := a.pairings.ApprovePairing(ctx, code); err != nil {
		return err
	}
	a.logger.Info("pairing approved, signing this device out", zap.String("code", code))

	a.session.SignOut(ctx)
	a.navigator.Replace(core.RouteLogin)
	return nil
}

// Reject declines the entered code. This device stays signed in.
func (a *Approver) Reject(ctx context.Context, entered string) error {
	code := SanitizeCode(entered)
	if code == "" {
		return ErrEmptyCode
	}
	if err := a.pairings.RejectPairing(ctx, code); err != nil {
		return err
	}
	a.logger.Info("pairing rejected", zap.String("code", code))
	return nil
}
