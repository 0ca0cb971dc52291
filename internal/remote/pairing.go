package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-authgate/memberguard/internal/core"
)

func (c *Client) FindActivePairing(ctx context.Context, deviceID string) (*core.PairingRequest, error) {
	var pairing core.PairingRequest
	query := url.Values{"device_id": {deviceID}, "active": {"true"}}
	if err := c.call(ctx, http.MethodGet, "/rest/v1/device_pairing", query, nil, &pairing); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pairing, nil
}

func (c *Client) CreatePairingCode(ctx context.Context, deviceID, label, userAgent string) (string, error) {
	var pairing core.PairingRequest
	err := c.call(ctx, http.MethodPost, "/rpc/create_pairing_code", nil, deviceRequest{
		DeviceID:  deviceID,
		Label:     label,
		UserAgent: userAgent,
	}, &pairing)
	if err != nil {
		return "", err
	}
	return pairing.Code, nil
}

func (c *Client) PollStatus(ctx context.Context, code string) (*core.PairingRequest, error) {
	var pairing core.PairingRequest
	if err := c.call(ctx, http.MethodGet, "/rest/v1/device_pairing", url.Values{"code": {code}}, nil, &pairing); err != nil {
		return nil, err
	}
	return &pairing, nil
}

func (c *Client) ApprovePairing(ctx context.Context, code string) error {
	return c.call(ctx, http.MethodPost, "/rpc/approve_pairing", nil, map[string]string{"code": code}, nil)
}

func (c *Client) RejectPairing(ctx context.Context, code string) error {
	return c.call(ctx, http.MethodPost, "/rpc/reject_pairing", nil, map[string]string{"code": code}, nil)
}
