package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/store"
	"github.com/go-authgate/memberguard/internal/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AuthModeLocal   = "local"
	AuthModeHTTPAPI = "http_api"
)

// MinPasswordLength is the shortest password UpdatePassword accepts.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials  = core.ErrInvalidCredentials
	ErrAuthProviderFailed  = errors.New("authentication provider failed")
	ErrUserSyncFailed      = errors.New("failed to sync user from external provider")
	ErrSessionInvalid      = errors.New("session is invalid or has been revoked")
	ErrPasswordTooShort    = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrExternalPasswordSet = errors.New("password is managed by the external provider")
)

// SignInParams carries a password sign-in and where it came from.
type SignInParams struct {
	Email     string
	Password  string
	DeviceID  string
	UserAgent string
	IPAddress string
}

// IdentityService is the identity provider behind member clients: password
// sign-in, bearer session validation, sign-out and password changes.
type IdentityService struct {
	store           *store.Store
	users           *UserService
	localProvider   core.AuthProvider
	httpAPIProvider core.AuthProvider
	authMode        string
	issuer          core.TokenIssuer
	sessionTTL      time.Duration
	metrics         core.Recorder
}

func NewIdentityService(
	s *store.Store,
	users *UserService,
	localProvider, httpAPIProvider core.AuthProvider,
	authMode string,
	issuer core.TokenIssuer,
	sessionTTL time.Duration,
	m core.Recorder,
) *IdentityService {
	return &IdentityService{
		store:           s,
		users:           users,
		localProvider:   localProvider,
		httpAPIProvider: httpAPIProvider,
		authMode:        authMode,
		issuer:          issuer,
		sessionTTL:      sessionTTL,
		metrics:         m,
	}
}

// SignIn verifies the credentials and opens a new session.
func (s *IdentityService) SignIn(
	ctx context.Context,
	p SignInParams,
) (*core.SessionToken, *models.User, error) {
	start := time.Now()
	email := strings.ToLower(strings.TrimSpace(p.Email))

	user, provider, err := s.authenticate(ctx, email, p.Password)
	s.metrics.RecordSignIn(provider, err == nil, time.Since(start))
	if err != nil {
		return nil, nil, err
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		DeviceID:  p.DeviceID,
		UserAgent: p.UserAgent,
		IPAddress: p.IPAddress,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	tok, err := s.issuer.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	zap.L().Info("member signed in",
		zap.String("user_id", user.ID),
		zap.String("provider", provider),
		zap.String("device_id", p.DeviceID),
	)
	return tok, user, nil
}

// authenticate routes by the member's auth_source; unknown emails are only
// tried against the external API in http_api mode.
func (s *IdentityService) authenticate(
	ctx context.Context,
	email, password string,
) (*models.User, string, error) {
	existing, err := s.store.GetUserByEmail(email)
	if err == nil {
		return s.authenticateExistingUser(ctx, existing, password)
	}

	if s.authMode == AuthModeHTTPAPI {
		user, err := s.authenticateAndCreateExternalUser(ctx, email, password)
		return user, AuthModeHTTPAPI, err
	}
	return nil, AuthModeLocal, ErrInvalidCredentials
}

func (s *IdentityService) authenticateExistingUser(
	ctx context.Context,
	user *models.User,
	password string,
) (*models.User, string, error) {
	var (
		provider core.AuthProvider
		name     string
	)
	switch user.AuthSource {
	case AuthModeHTTPAPI:
		provider, name = s.httpAPIProvider, AuthModeHTTPAPI
	default:
		provider, name = s.localProvider, AuthModeLocal
	}
	if provider == nil {
		return nil, name, fmt.Errorf("%w: %s provider not configured", ErrAuthProviderFailed, name)
	}

	result, err := provider.Authenticate(ctx, user.Email, password)
	if err != nil || result == nil || !result.Success {
		if err != nil {
			zap.L().Debug("authentication failed",
				zap.String("email", user.Email),
				zap.String("provider", name),
				zap.Error(err),
			)
		}
		return nil, name, ErrInvalidCredentials
	}

	if name == AuthModeHTTPAPI {
		synced, syncErr := s.syncExternalUser(result)
		if syncErr != nil {
			zap.L().Warn("external user sync failed",
				zap.String("email", user.Email),
				zap.Error(syncErr),
			)
		} else {
			user = synced
			s.users.InvalidateUserCache(ctx, user.ID)
		}
	}
	return user, name, nil
}

func (s *IdentityService) authenticateAndCreateExternalUser(
	ctx context.Context,
	email, password string,
) (*models.User, error) {
	if s.httpAPIProvider == nil {
		return nil, fmt.Errorf("%w: HTTP API provider not configured", ErrAuthProviderFailed)
	}

	result, err := s.httpAPIProvider.Authenticate(ctx, email, password)
	if err != nil || result == nil || !result.Success {
		return nil, ErrInvalidCredentials
	}

	user, err := s.syncExternalUser(result)
	if err != nil {
		zap.L().Error("failed to create external member", zap.String("email", email), zap.Error(err))
		return nil, ErrUserSyncFailed
	}
	zap.L().Info("new external member created", zap.String("email", user.Email))
	return user, nil
}

func (s *IdentityService) syncExternalUser(result *core.AuthResult) (*models.User, error) {
	user, err := s.store.UpsertExternalUser(
		result.ExternalID,
		AuthModeHTTPAPI,
		result.Email,
		result.FullName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert external user: %w", err)
	}
	return user, nil
}

// ValidateSession checks the bearer token signature and that its session row
// is still live.
func (s *IdentityService) ValidateSession(tokenString string) (*models.Session, error) {
	claims, err := s.issuer.Validate(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			s.metrics.RecordSessionValidation("expired")
		} else {
			s.metrics.RecordSessionValidation("invalid")
		}
		return nil, ErrSessionInvalid
	}

	session, err := s.store.GetSession(claims.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordSessionValidation("invalid")
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	if session.UserID != claims.UserID || !session.IsActive() {
		s.metrics.RecordSessionValidation("revoked")
		return nil, ErrSessionInvalid
	}

	s.metrics.RecordSessionValidation("valid")
	return session, nil
}

// SignOut revokes the session. Revoking an already revoked session is not an
// error.
func (s *IdentityService) SignOut(session *models.Session) error {
	if err := s.store.RevokeSession(session.ID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.metrics.RecordSignOut(time.Since(session.CreatedAt))
	return nil
}

// UpdatePassword replaces a local member's password hash.
func (s *IdentityService) UpdatePassword(ctx context.Context, userID, password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsExternal() {
		return ErrExternalPasswordSet
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(userID, string(hash)); err != nil {
		return err
	}
	s.users.InvalidateUserCache(ctx, userID)
	return nil
}
