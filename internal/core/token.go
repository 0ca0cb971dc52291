package core

import "time"

// SessionToken is a signed identity-provider session handed to a member client.
type SessionToken struct {
	TokenString string
	SessionID   string
	UserID      string
	ExpiresAt   time.Time
}

// SessionClaims is what a validated session token carries.
type SessionClaims struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

// TokenIssuer signs and validates member session tokens.
type TokenIssuer interface {
	Issue(userID, sessionID string, expiresAt time.Time) (*SessionToken, error)
	Validate(tokenString string) (*SessionClaims, error)
}
