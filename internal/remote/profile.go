package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-authgate/memberguard/internal/core"
)

// FetchProfile loads the signed-in member's profile. The server answers for
// the bearer of the token, so a different userID means the session changed
// underneath the caller.
func (c *Client) FetchProfile(ctx context.Context, userID string) (*core.Profile, error) {
	var profile core.Profile
	if err := c.call(ctx, http.MethodGet, "/rest/v1/profile", nil, nil, &profile); err != nil {
		return nil, err
	}
	if profile.ID != userID {
		return nil, fmt.Errorf("profile belongs to %q, not %q", profile.ID, userID)
	}
	return &profile, nil
}
