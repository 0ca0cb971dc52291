package core

import "errors"

var (
	// ErrMaxDeviceReached is returned when an account already holds its
	// maximum number of non-revoked device bindings.
	ErrMaxDeviceReached = errors.New("MAX_DEVICE_REACHED")

	// ErrDeviceRevoked is returned when a device binding exists but was revoked.
	ErrDeviceRevoked = errors.New("device binding revoked")

	// ErrDeviceNotTrusted is returned when an action requires a bound device.
	ErrDeviceNotTrusted = errors.New("device is not bound to this account")

	ErrPairingNotFound   = errors.New("pairing code not found")
	ErrPairingExpired    = errors.New("pairing code expired")
	ErrPairingNotPending = errors.New("pairing code is no longer pending")

	// ErrNoSession is returned by calls that need a signed-in session.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidCredentials is returned for a rejected email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrStorageKeyNotFound is returned by Storage.Get for an absent key.
	ErrStorageKeyNotFound = errors.New("storage: key not found")
)
