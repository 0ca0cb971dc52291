package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"

	retry "github.com/appleboy/go-httpretry"
)

// Compile-time interface check.
var _ core.AuthProvider = (*HTTPAPIAuthProvider)(nil)

// HTTPAPIAuthProvider handles HTTP API-based authentication
type HTTPAPIAuthProvider struct {
	url         string
	retryClient *retry.Client
}

// NewHTTPAPIAuthProvider creates a new HTTP API authentication provider.
// Authentication headers and retries come from retryClient.
func NewHTTPAPIAuthProvider(cfg *config.Config, retryClient *retry.Client) *HTTPAPIAuthProvider {
	return &HTTPAPIAuthProvider{
		url:         cfg.HTTPAPIURL,
		retryClient: retryClient,
	}
}

// APIAuthRequest is the request payload sent to external API
type APIAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// APIAuthResponse is the expected response from external API
type APIAuthResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Authenticate verifies credentials against external HTTP API
func (p *HTTPAPIAuthProvider) Authenticate(
	ctx context.Context,
	email, password string,
) (*core.AuthResult, error) {
	jsonData, err := json.Marshal(APIAuthRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.retryClient.Post(
		ctx,
		p.url,
		retry.WithBody("application/json", bytes.NewReader(jsonData)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrHTTPAPIInvalidResp)
	}

	// Check HTTP status code before attempting to parse JSON
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var authResp APIAuthResponse
		if err := json.Unmarshal(body, &authResp); err == nil && authResp.Message != "" {
			return nil, fmt.Errorf(
				"%w: HTTP %d - %s",
				ErrHTTPAPIAuthFailed,
				resp.StatusCode,
				authResp.Message,
			)
		}
		// Limit body preview to 200 characters to avoid overwhelming logs
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		return nil, fmt.Errorf(
			"%w: HTTP %d - %s",
			ErrHTTPAPIInvalidResp,
			resp.StatusCode,
			bodyPreview,
		)
	}

	var authResp APIAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIInvalidResp, err)
	}

	if !authResp.Success {
		return nil, ErrHTTPAPIAuthFailed
	}

	if authResp.UserID == "" {
		return nil, fmt.Errorf(
			"%w: external API returned success=true but missing user_id",
			ErrHTTPAPIInvalidResp,
		)
	}

	resolvedEmail := authResp.Email
	if resolvedEmail == "" {
		resolvedEmail = email
	}

	return &core.AuthResult{
		Email:      resolvedEmail,
		ExternalID: authResp.UserID,
		FullName:   authResp.FullName,
		Success:    true,
	}, nil
}

// Name returns provider name for logging
func (p *HTTPAPIAuthProvider) Name() string {
	return "http_api"
}
