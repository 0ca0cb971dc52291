package handlers

import (
	"net/http"
	"time"

	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/services"

	"github.com/gin-gonic/gin"
)

// IdentityHandler serves the identity-provider routes under /auth/v1 and the
// member profile.
type IdentityHandler struct {
	identity *services.IdentityService
	users    *services.UserService
}

func NewIdentityHandler(is *services.IdentityService, us *services.UserService) *IdentityHandler {
	return &IdentityHandler{identity: is, users: us}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

// Token handles POST /auth/v1/token
func (h *IdentityHandler) Token(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "Request body must be JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "email and password are required")
		return
	}

	tok, user, err := h.identity.SignIn(c.Request.Context(), services.SignInParams{
		Email:     req.Email,
		Password:  req.Password,
		DeviceID:  deviceID(c, req.DeviceID),
		UserAgent: c.Request.UserAgent(),
		IPAddress: clientIP(c),
	})
	if err != nil {
		respondServiceError(c, "sign_in", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tok.TokenString,
		"token_type":   "bearer",
		"expires_in":   int(time.Until(tok.ExpiresAt).Seconds()),
		"expires_at":   tok.ExpiresAt,
		"session_id":   tok.SessionID,
		"user":         user.ToCore(),
	})
}

// Session handles GET /auth/v1/session
func (h *IdentityHandler) Session(c *gin.Context) {
	session := models.GetSessionFromContext(c.Request.Context())
	if session == nil {
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "No active session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"user_id":    session.UserID,
		"device_id":  session.DeviceID,
		"expires_at": session.ExpiresAt,
	})
}

// Logout handles POST /auth/v1/logout
func (h *IdentityHandler) Logout(c *gin.Context) {
	session := models.GetSessionFromContext(c.Request.Context())
	if session == nil {
		respondError(c, http.StatusUnauthorized, CodeUnauthorized, "No active session")
		return
	}
	if err := h.identity.SignOut(session); err != nil {
		respondServiceError(c, "sign_out", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateUserRequest struct {
	Password string `json:"password"`
}

// UpdateUser handles PUT /auth/v1/user
func (h *IdentityHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "password is required")
		return
	}

	if err := h.identity.UpdatePassword(c.Request.Context(), currentUserID(c), req.Password); err != nil {
		respondServiceError(c, "update_password", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Profile handles GET /rest/v1/profile
func (h *IdentityHandler) Profile(c *gin.Context) {
	profile, err := h.users.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondServiceError(c, "get_profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
