package core

import (
	"context"
	"time"
)

// Persisted client storage keys.
const (
	KeyDeviceID     = "device_id"
	KeySessionStart = "auth_session_start"
	KeyLastActivity = "auth_last_activity"
	KeyCachedUser   = "auth_cached_user"
	KeyCachedUserAt = "auth_cached_user_at"
	KeyAuthToken    = "auth_token"
)

// HeaderDeviceID carries the caller's device id on every request, so the
// server can tell which binding a session is acting from.
const HeaderDeviceID = "X-Device-ID"

// Routes the session core navigates between.
const (
	RouteLogin          = "/login"
	RouteDevicePairing  = "/device-pairing"
	RouteDeviceApprove  = "/device-approve"
	RouteDashboard      = "/dashboard"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"
)

// PublicPaths never trigger device verification.
var PublicPaths = map[string]bool{
	RouteLogin:          true,
	RouteDevicePairing:  true,
	RouteDeviceApprove:  true,
	RouteForgotPassword: true,
	RouteResetPassword:  true,
}

// AuthEvent names an identity-provider state change.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthSession is the opaque identity-provider session. The client only
// checks its presence.
type AuthSession struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthStateListener receives identity-provider state changes. session is nil
// when signed out.
type AuthStateListener func(event AuthEvent, session *AuthSession)

// IdentityProvider is the hosted identity backend the portal delegates to.
type IdentityProvider interface {
	// GetSession returns the current session, or nil when there is none.
	GetSession(ctx context.Context) (*AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers fn and returns a function that removes it.
	OnAuthStateChange(fn AuthStateListener) (unsubscribe func())
	UpdatePassword(ctx context.Context, password string) error
}

// DeviceBinding associates one device identifier with one account.
type DeviceBinding struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	UserAgent string    `json:"user_agent"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceRegistry is the server-side device binding collaborator.
type DeviceRegistry interface {
	// CheckBinding returns the binding of deviceID on userID, or nil when no
	// row exists.
	CheckBinding(ctx context.Context, userID, deviceID string) (*DeviceBinding, error)
	// RegisterDevice binds the device to the signed-in account. It returns
	// ErrMaxDeviceReached when the account is at its device cap.
	RegisterDevice(ctx context.Context, deviceID, label, userAgent string) error
}

// PairingStatus is the lifecycle state of a pairing request.
type PairingStatus string

const (
	PairingPending  PairingStatus = "pending"
	PairingApproved PairingStatus = "approved"
	PairingRejected PairingStatus = "rejected"
	PairingExpired  PairingStatus = "expired"
)

// PairingRequest is a short-lived code authorizing a new device.
type PairingRequest struct {
	Code      string        `json:"code"`
	DeviceID  string        `json:"device_id"`
	Label     string        `json:"label"`
	UserAgent string        `json:"user_agent"`
	Status    PairingStatus `json:"status"`
	ExpiresAt time.Time     `json:"expires_at"`
	CreatedAt time.Time     `json:"created_at"`
}

// PairingService is the server-side pairing collaborator.
type PairingService interface {
	// FindActivePairing returns the most recent pending, unexpired request for
	// deviceID, or nil.
	FindActivePairing(ctx context.Context, deviceID string) (*PairingRequest, error)
	CreatePairingCode(ctx context.Context, deviceID, label, userAgent string) (string, error)
	PollStatus(ctx context.Context, code string) (*PairingRequest, error)
	ApprovePairing(ctx context.Context, code string) error
	RejectPairing(ctx context.Context, code string) error
}

// Profile is the member account row painted by the portal.
type Profile struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullname"`
	WhatsApp              string     `json:"whatsapp,omitempty"`
	Tier                  string     `json:"tier"`
	Balance               string     `json:"balance"`
	ReferralCode          string     `json:"referral_code"`
	Role                  string     `json:"role"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
}

// ProfileSource loads member profiles.
type ProfileSource interface {
	FetchProfile(ctx context.Context, userID string) (*Profile, error)
}

// Storage is persisted client storage. Writes are last-write-wins.
type Storage interface {
	// Get returns ErrStorageKeyNotFound when key is absent.
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(keys ...string) error
}

// Navigator moves the member between portal routes.
type Navigator interface {
	Current() string
	Replace(route string)
}

// Connectivity reports whether the network is believed reachable.
type Connectivity interface {
	Online() bool
}
