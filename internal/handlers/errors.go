package handlers

import (
	"errors"
	"net/http"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/services"
	"github.com/go-authgate/memberguard/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error codes carried in the "error" field of every failed response.
const (
	CodeMaxDeviceReached  = "MAX_DEVICE_REACHED"
	CodeDeviceRevoked     = "DEVICE_REVOKED"
	CodePairingNotFound   = "PAIRING_NOT_FOUND"
	CodePairingExpired    = "PAIRING_EXPIRED"
	CodePairingNotPending = "PAIRING_NOT_PENDING"
	CodeInvalidCreds      = "invalid_credentials"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeInvalidRequest    = "invalid_request"
	CodeServerError       = "server_error"
)

func respondError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{
		"error":             code,
		"error_description": description,
	})
}

// errorMapping pairs a service sentinel with the response it produces.
type errorMapping struct {
	target error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{core.ErrMaxDeviceReached, http.StatusConflict, CodeMaxDeviceReached},
	{core.ErrDeviceRevoked, http.StatusForbidden, CodeDeviceRevoked},
	{core.ErrDeviceNotTrusted, http.StatusForbidden, CodeForbidden},
	{core.ErrPairingNotFound, http.StatusNotFound, CodePairingNotFound},
	{core.ErrPairingExpired, http.StatusGone, CodePairingExpired},
	{core.ErrPairingNotPending, http.StatusConflict, CodePairingNotPending},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCreds},
	{services.ErrSessionInvalid, http.StatusUnauthorized, CodeUnauthorized},
	{services.ErrUserNotFound, http.StatusNotFound, CodeNotFound},
	{services.ErrDeviceNotFound, http.StatusNotFound, CodeNotFound},
	{services.ErrDeviceIDRequired, http.StatusBadRequest, CodeInvalidRequest},
	{services.ErrInvalidPairingCode, http.StatusBadRequest, CodeInvalidRequest},
	{services.ErrPasswordTooShort, http.StatusBadRequest, CodeInvalidRequest},
	{services.ErrExternalPasswordSet, http.StatusBadRequest, CodeInvalidRequest},
}

// respondServiceError translates a service error into its JSON response.
// Unknown errors are logged and surface as server_error.
func respondServiceError(c *gin.Context, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			respondError(c, m.status, m.code, m.target.Error())
			return
		}
	}

	zap.L().Error("request failed",
		zap.String("operation", op),
		zap.String("user_id", models.GetUserIDFromContext(c.Request.Context())),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, CodeServerError, "Internal server error")
}

// currentUserID returns the member RequireSession attached to the request.
func currentUserID(c *gin.Context) string {
	return models.GetUserIDFromContext(c.Request.Context())
}

// clientIP prefers the address util.IPMiddleware resolved.
func clientIP(c *gin.Context) string {
	if ip := util.GetIPFromContext(c.Request.Context()); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// userAgent prefers the value reported in the body over the request header.
func userAgent(c *gin.Context, reported string) string {
	if reported != "" {
		return reported
	}
	return c.Request.UserAgent()
}

// deviceID prefers the body value and falls back to the X-Device-ID header.
func deviceID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader(core.HeaderDeviceID)
}
