package handlers

import (
	"net/http"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/services"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	deviceService *services.DeviceService
}

func NewDeviceHandler(ds *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: ds}
}

// GetBinding handles GET /rest/v1/devices?device_id=
// A revoked binding is returned as such; only a never-bound device is a 404.
func (h *DeviceHandler) GetBinding(c *gin.Context) {
	id := deviceID(c, c.Query("device_id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "device_id is required")
		return
	}

	binding, err := h.deviceService.CheckBinding(currentUserID(c), id)
	if err != nil {
		respondServiceError(c, "check_binding", err)
		return
	}
	if binding == nil {
		respondError(c, http.StatusNotFound, CodeNotFound, "Device is not bound to this account")
		return
	}
	c.JSON(http.StatusOK, binding.ToCore())
}

// ListBindings handles GET /rest/v1/devices/all
func (h *DeviceHandler) ListBindings(c *gin.Context) {
	devices, err := h.deviceService.ListDevices(currentUserID(c))
	if err != nil {
		respondServiceError(c, "list_devices", err)
		return
	}

	bindings := make([]*core.DeviceBinding, 0, len(devices))
	for i := range devices {
		bindings = append(bindings, devices[i].ToCore())
	}
	c.JSON(http.StatusOK, gin.H{"devices": bindings})
}

type deviceRequest struct {
	DeviceID  string `json:"device_id"`
	Label     string `json:"label"`
	UserAgent string `json:"user_agent"`
}

// Register handles POST /rpc/register_device
func (h *DeviceHandler) Register(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, "Request body must be JSON")
		return
	}

	device, err := h.deviceService.RegisterDevice(c.Request.Context(), services.RegisterDeviceRequest{
		UserID:    currentUserID(c),
		DeviceID:  deviceID(c, req.DeviceID),
		Label:     req.Label,
		UserAgent: userAgent(c, req.UserAgent),
		IPAddress: clientIP(c),
	})
	if err != nil {
		respondServiceError(c, "register_device", err)
		return
	}
	c.JSON(http.StatusOK, device.ToCore())
}

// AdminRevoke handles POST /admin/devices/:id/revoke
func (h *DeviceHandler) AdminRevoke(c *gin.Context) {
	device, err := h.deviceService.RevokeDevice(c.Param("id"), "admin")
	if err != nil {
		respondServiceError(c, "revoke_device", err)
		return
	}
	c.JSON(http.StatusOK, device.ToCore())
}
