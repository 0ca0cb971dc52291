package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-authgate/memberguard/internal/core"
)

type deviceRequest struct {
	DeviceID  string `json:"device_id"`
	Label     string `json:"label"`
	UserAgent string `json:"user_agent"`
}

// CheckBinding returns the binding of deviceID on the signed-in account, or
// nil when the device was never bound. userID must be the signed-in member.
func (c *Client) CheckBinding(ctx context.Context, userID, deviceID string) (*core.DeviceBinding, error) {
	var binding core.DeviceBinding
	err := c.call(ctx, http.MethodGet, "/rest/v1/devices", url.Values{"device_id": {deviceID}}, nil, &binding)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if binding.UserID != userID {
		return nil, fmt.Errorf("binding belongs to %q, not %q", binding.UserID, userID)
	}
	return &binding, nil
}

func (c *Client) RegisterDevice(ctx context.Context, deviceID, label, userAgent string) error {
	return c.call(ctx, http.MethodPost, "/rpc/register_device", nil, deviceRequest{
		DeviceID:  deviceID,
		Label:     label,
		UserAgent: userAgent,
	}, nil)
}

// ListBindings returns every binding of the signed-in account.
func (c *Client) ListBindings(ctx context.Context) ([]core.DeviceBinding, error) {
	var resp struct {
		Devices []core.DeviceBinding `json:"devices"`
	}
	if err := c.call(ctx, http.MethodGet, "/rest/v1/devices/all", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}
