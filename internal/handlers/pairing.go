package handlers

import (
	"net/http"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/services"

	"github.com/gin-gonic/gin"
)

type PairingHandler struct {
	pairingService *services.PairingService
}

func NewPairingHandler(ps *services.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: ps}
}

// Create handles POST /rpc/create_pairing_code
// A device that already holds a live code gets that code back.
func (h *PairingHandler) Create(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "Request body must be JSON")
		return
	}

	pairing, err := h.pairingService.CreatePairingCode(services.CreatePairingRequest{
		UserID:    currentUserID(c),
		DeviceID:  deviceID(c, req.DeviceID),
		Label:     req.Label,
		UserAgent: userAgent(c, req.UserAgent),
	})
	if err != nil {
		respondServiceError(c, "create_pairing_code", err)
		return
	}
	c.JSON(http.StatusOK, pairing.ToCore())
}

// Get handles GET /rest/v1/device_pairing
//
//	?code=123456                   poll one code
//	?device_id=<id>&active=true    the device's live code, 404 when none
func (h *PairingHandler) Get(c *gin.Context) {
	userID := currentUserID(c)

	if code := c.Query("code"); code != "" {
		pairing, err := h.pairingService.GetPairing(userID, code)
		if err != nil {
			respondServiceError(c, "get_pairing", err)
			return
		}
		c.JSON(http.StatusOK, pairing.ToCore())
		return
	}

	if c.Query("active") != "true" {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "code or device_id with active=true is required")
		return
	}
	pairing, err := h.pairingService.FindActivePairing(userID, deviceID(c, c.Query("device_id")))
	if err != nil {
		respondServiceError(c, "find_active_pairing", err)
		return
	}
	if pairing == nil {
		respondError(c, http.StatusNotFound, CodePairingNotFound, core.ErrPairingNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, pairing.ToCore())
}

type decisionRequest struct {
	Code string `json:"code"`
}

// Approve handles POST /rpc/approve_pairing
// The approving device identifies itself with the X-Device-ID header.
func (h *PairingHandler) Approve(c *gin.Context) {
	code, ok := bindDecision(c)
	if !ok {
		return
	}

	pairing, err := h.pairingService.ApprovePairing(currentUserID(c), code, c.GetHeader(core.HeaderDeviceID))
	if err != nil {
		respondServiceError(c, "approve_pairing", err)
		return
	}
	c.JSON(http.StatusOK, pairing.ToCore())
}

// Reject handles POST /rpc/reject_pairing
func (h *PairingHandler) Reject(c *gin.Context) {
	code, ok := bindDecision(c)
	if !ok {
		return
	}

	pairing, err := h.pairingService.RejectPairing(currentUserID(c), code, c.GetHeader(core.HeaderDeviceID))
	if err != nil {
		respondServiceError(c, "reject_pairing", err)
		return
	}
	c.JSON(http.StatusOK, pairing.ToCore())
}

func bindDecision(c *gin.Context) (string, bool) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "code is required")
		return "", false
	}
	return req.Code, true
}
