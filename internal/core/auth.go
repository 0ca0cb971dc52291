package core

import "context"

// AuthResult holds the outcome of a password verification attempt.
type AuthResult struct {
	Email      string
	ExternalID string // External user ID (e.g., API user ID)
	FullName   string // Optional
	Success    bool
}

// AuthProvider is the interface that password-based authentication
// backends must implement.
type AuthProvider interface {
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
	Name() string
}
