package client

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// DefaultAuthHeader carries the shared secret in simple mode.
const DefaultAuthHeader = "X-API-Secret"

// RetryConfig describes an authenticated HTTP client with retry support.
type RetryConfig struct {
	AuthMode           string // "none", "simple", or "hmac"
	AuthSecret         string
	AuthHeader         string // Header for simple mode (default: "X-API-Secret")
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxRetries         int
	RetryDelay         time.Duration
	MaxRetryDelay      time.Duration

	// Wrap decorates the base transport underneath request signing.
	Wrap func(http.RoundTripper) http.RoundTripper
}

// CreateRetryClient creates an HTTP client with retry support and authentication.
// Member clients use it to reach the API, and the server uses it to reach an
// external credential API.
func CreateRetryClient(cfg RetryConfig) (*retry.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		// #nosec G402 -- InsecureSkipVerify is user-configurable for development/testing
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	var base http.RoundTripper = transport
	if cfg.Wrap != nil {
		base = cfg.Wrap(base)
	}

	mode := cfg.AuthMode
	if mode == "" {
		mode = httpclient.AuthModeNone
	}
	header := cfg.AuthHeader
	if header == "" {
		header = DefaultAuthHeader
	}

	// Create HTTP client with automatic authentication
	client, err := httpclient.NewAuthClient(
		mode,
		cfg.AuthSecret,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithHeaderName(header),
		httpclient.WithTransport(base),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	// Wrap with retry client
	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithInitialRetryDelay(cfg.RetryDelay),
		retry.WithMaxRetryDelay(cfg.MaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	return retryClient, nil
}
