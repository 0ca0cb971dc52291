package auth

import (
	"context"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Compile-time interface check.
var _ core.AuthProvider = (*LocalAuthProvider)(nil)

// UserLookup finds members by login email.
type UserLookup interface {
	GetUserByEmail(email string) (*models.User, error)
}

// LocalAuthProvider handles local database authentication
type LocalAuthProvider struct {
	users UserLookup
}

// NewLocalAuthProvider creates a new local authentication provider
func NewLocalAuthProvider(users UserLookup) *LocalAuthProvider {
	return &LocalAuthProvider{users: users}
}

// Authenticate verifies credentials against local database
func (p *LocalAuthProvider) Authenticate(
	ctx context.Context,
	email, password string,
) (*core.AuthResult, error) {
	user, err := p.users.GetUserByEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(password),
	); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &core.AuthResult{
		Email:    user.Email,
		FullName: user.FullName,
		Success:  true,
	}, nil
}

// Name returns provider name for logging
func (p *LocalAuthProvider) Name() string {
	return "local"
}
