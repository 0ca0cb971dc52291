package bootstrap

import (
	"github.com/go-authgate/memberguard/internal/handlers"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	identity *handlers.IdentityHandler
	device   *handlers.DeviceHandler
	pairing  *handlers.PairingHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(s serviceSet) handlerSet {
	return handlerSet{
		identity: handlers.NewIdentityHandler(s.identity, s.user),
		device:   handlers.NewDeviceHandler(s.device),
		pairing:  handlers.NewPairingHandler(s.pairing),
	}
}
