package portal

import (
	"context"
	"errors"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/deviceid"

	"go.uber.org/zap"
)

// Decision is the outcome of a device check.
type Decision string

const (
	// DecisionSkipped: the current route is public.
	DecisionSkipped Decision = "skipped"
	// DecisionTrusted: the device holds a live binding.
	DecisionTrusted Decision = "trusted"
	// DecisionRegistered: the device was unbound and is now bound.
	DecisionRegistered Decision = "registered"
	// DecisionPairingRequired: the account is at its device cap, or no
	// device id is available. The member was sent to the pairing page.
	DecisionPairingRequired Decision = "pairing_required"
	// DecisionRevoked: the binding was revoked. The member was signed out
	// and sent to the pairing page.
	DecisionRevoked Decision = "revoked"
	// DecisionDeferred: the registry could not be reached. Nothing changed.
	DecisionDeferred Decision = "deferred"
)

// VerifyDevice checks that this device may act for userID, registering it
// when unbound. Registry failures are soft: they are logged and leave the
// session alone. Only a revoked binding or a full device cap act on the
// member.
func (c *Coordinator) VerifyDevice(ctx context.Context, userID string) Decision {
	path := c.deps.Navigator.Current()
	if core.PublicPaths[path] {
		return DecisionSkipped
	}

	deviceID, ok := deviceid.GetOrCreate(c.deps.Storage)
	if !ok {
		c.deps.Navigator.Replace(core.RouteDevicePairing)
		return DecisionPairingRequired
	}
	log := c.logger.With(zap.String("user_id", userID), zap.String("device_id", deviceID))

	binding, err := c.deps.Devices.CheckBinding(ctx, userID, deviceID)
	if err != nil {
		log.Warn("device check error", zap.Error(err))
		return DecisionDeferred
	}

	if binding == nil {
		err := c.deps.Devices.RegisterDevice(ctx, deviceID, deviceid.Label(c.deps.UserAgent), c.deps.UserAgent)
		switch {
		case err == nil:
			log.Info("device registered")
			return DecisionRegistered
		case errors.Is(err, core.ErrMaxDeviceReached):
			// A concurrent approval may have bound this device after the
			// first check. Look once more before sending the member away.
			recheck, recheckErr := c.deps.Devices.CheckBinding(ctx, userID, deviceID)
			if recheckErr == nil && recheck != nil && !recheck.Revoked {
				log.Info("device bound concurrently, staying")
				return DecisionTrusted
			}
			log.Info("device cap reached, pairing required")
			c.deps.Navigator.Replace(core.RouteDevicePairing)
			return DecisionPairingRequired
		default:
			log.Warn("device register error", zap.Error(err))
			return DecisionDeferred
		}
	}

	if binding.Revoked {
		c.mu.Lock()
		other := c.sessionUser != "" && c.sessionUser != userID
		c.mu.Unlock()
		if other {
			log.Debug("revoked binding belongs to an ended session")
			return DecisionDeferred
		}

		log.Warn("device binding revoked, signing out")
		c.signOutLocal()
		if err := c.deps.Identity.SignOut(c.life); err != nil {
			log.Error("sign out error", zap.Error(err))
		}
		c.deps.Navigator.Replace(core.RouteDevicePairing)
		return DecisionRevoked
	}

	return DecisionTrusted
}

// scheduleVerify runs VerifyDevice in the background. Concurrent checks for
// the same member collapse into one, and a token refresh inside the verify
// interval of a completed check is not re-verified.
func (c *Coordinator) scheduleVerify(event core.AuthEvent, userID string) {
	c.mu.Lock()
	if c.verifying[userID] {
		c.mu.Unlock()
		return
	}
	if event == core.EventTokenRefreshed {
		if at, ok := c.lastVerified[userID]; ok && c.clock.Since(at) < c.verifyInterval {
			c.mu.Unlock()
			return
		}
	}
	c.verifying[userID] = true
	ctx := c.sessCtx
	c.mu.Unlock()

	c.goBackground(func() {
		decision := c.VerifyDevice(ctx, userID)

		c.mu.Lock()
		delete(c.verifying, userID)
		if decision == DecisionTrusted || decision == DecisionRegistered {
			c.lastVerified[userID] = c.clock.Now()
		} else {
			delete(c.lastVerified, userID)
		}
		c.mu.Unlock()
	})
}
