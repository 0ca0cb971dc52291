package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/services"

	httpclient "github.com/appleboy/go-httpclient"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// serviceKeyMaxAge bounds the clock skew accepted on HMAC-signed requests.
const serviceKeyMaxAge = 5 * time.Minute

var errInvalidServiceKey = errors.New("invalid or missing service key")

// Gin context keys set by RequireSession.
const (
	ContextUser    = "user"
	ContextSession = "session"
	ContextUserID  = "user_id"
)

// SessionValidator resolves a bearer token to a live session.
type SessionValidator interface {
	ValidateSession(tokenString string) (*models.Session, error)
}

// UserLoader loads the member a session belongs to.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

func abortWithError(c *gin.Context, status int, code, description string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(header[7:])
	return tok, tok != ""
}

// RequireSession rejects requests without a live bearer session and stores
// the session and its member for later handlers.
func RequireSession(sessions SessionValidator, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="memberguard"`)
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Bearer token required")
			return
		}

		session, err := sessions.ValidateSession(tok)
		if err != nil {
			if errors.Is(err, services.ErrSessionInvalid) {
				c.Header("WWW-Authenticate", `Bearer realm="memberguard", error="invalid_token"`)
				abortWithError(c, http.StatusUnauthorized, "unauthorized", "Session is invalid or has been revoked")
				return
			}
			zap.L().Error("session validation failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "server_error", "Failed to validate session")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), session.UserID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				abortWithError(c, http.StatusUnauthorized, "unauthorized", "Member no longer exists")
				return
			}
			zap.L().Error("failed to load session member",
				zap.String("user_id", session.UserID),
				zap.Error(err),
			)
			abortWithError(c, http.StatusInternalServerError, "server_error", "Failed to load member")
			return
		}

		ctx := models.SetSessionContext(c.Request.Context(), session)
		ctx = models.SetUserContext(ctx, user)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextSession, session)
		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

// RequireAdmin is a middleware that requires the member to have admin role
// This middleware should be used after RequireSession
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := models.GetUserFromContext(c.Request.Context())
		if user == nil {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if !user.IsAdmin() {
			abortWithError(c, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		c.Next()
	}
}

// RequireAPIKey checks the service key every member client presents.
func RequireAPIKey(cfg *httpclient.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := verifyServiceKey(cfg, c.Request); err != nil {
			zap.L().Debug("service key rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or missing service key")
			return
		}
		c.Next()
	}
}

// verifyServiceKey accepts what a client built with the same mode and secret
// sends. HMAC verification restores the body for later handlers.
func verifyServiceKey(cfg *httpclient.AuthConfig, req *http.Request) error {
	if cfg == nil {
		return nil
	}
	switch cfg.Mode {
	case "", httpclient.AuthModeNone:
		return nil
	case httpclient.AuthModeSimple:
		got := req.Header.Get(cfg.HeaderName)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Secret)) != 1 {
			return errInvalidServiceKey
		}
		return nil
	case httpclient.AuthModeHMAC:
		return cfg.VerifyHMACSignature(req, serviceKeyMaxAge)
	default:
		return fmt.Errorf("unsupported service auth mode %q", cfg.Mode)
	}
}
