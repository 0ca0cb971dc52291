// Package remote implements the member-side collaborators over the
// memberguard HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-authgate/memberguard/internal/client"
	"github.com/go-authgate/memberguard/internal/core"

	retry "github.com/appleboy/go-httpretry"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	_ core.IdentityProvider = (*Client)(nil)
	_ core.DeviceRegistry   = (*Client)(nil)
	_ core.PairingService   = (*Client)(nil)
	_ core.ProfileSource    = (*Client)(nil)
)

// errorCodes maps API error codes back to the sentinels the server
// translated them from.
var errorCodes = map[string]error{
	"MAX_DEVICE_REACHED":  core.ErrMaxDeviceReached,
	"DEVICE_REVOKED":      core.ErrDeviceRevoked,
	"PAIRING_NOT_FOUND":   core.ErrPairingNotFound,
	"PAIRING_EXPIRED":     core.ErrPairingExpired,
	"PAIRING_NOT_PENDING": core.ErrPairingNotPending,
	"invalid_credentials": core.ErrInvalidCredentials,
	"unauthorized":        core.ErrNoSession,
	"forbidden":           core.ErrDeviceNotTrusted,
}

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap lets errors.Is match the sentinel for known codes.
func (e *APIError) Unwrap() error {
	return errorCodes[e.Code]
}

// Option configures a Client.
type Option func(*Client)

// WithServiceAuth signs every request with the service key.
func WithServiceAuth(mode, secret, header string) Option {
	return func(c *Client) {
		c.httpConfig.AuthMode = mode
		c.httpConfig.AuthSecret = secret
		c.httpConfig.AuthHeader = header
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpConfig.Timeout = d
		}
	}
}

// WithRetries sets how often and how patiently failed calls are retried.
func WithRetries(maxRetries int, delay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.httpConfig.MaxRetries = maxRetries
		c.httpConfig.RetryDelay = delay
		c.httpConfig.MaxRetryDelay = maxDelay
	}
}

func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) { c.httpConfig.InsecureSkipVerify = skip }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the memberguard API on behalf of one member client. The
// session token lives in the client Storage so it survives restarts.
type Client struct {
	baseURL    string
	http       *retry.Client
	httpConfig client.RetryConfig
	storage    core.Storage
	clock      clockwork.Clock
	logger     *zap.Logger

	mu        sync.Mutex
	listeners map[int]core.AuthStateListener
	nextID    int
}

func New(baseURL string, storage core.Storage, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpConfig: client.RetryConfig{
			Timeout:       10 * time.Second,
			MaxRetries:    3,
			RetryDelay:    500 * time.Millisecond,
			MaxRetryDelay: 5 * time.Second,
		},
		storage:   storage,
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
		listeners: make(map[int]core.AuthStateListener),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpConfig.Wrap = func(next http.RoundTripper) http.RoundTripper {
		return &sessionTransport{next: next, client: c}
	}
	rc, err := client.CreateRetryClient(c.httpConfig)
	if err != nil {
		return nil, err
	}
	c.http = rc
	return c, nil
}

// sessionTransport stamps the member's bearer token and device id on every
// attempt, retries included.
type sessionTransport struct {
	next   http.RoundTripper
	client *Client
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	if token := t.client.accessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id, err := t.client.storage.Get(core.KeyDeviceID); err == nil && id != "" {
		req.Header.Set(core.HeaderDeviceID, id)
	}
	t.client.logger.Debug("api request", zap.String("method", req.Method), zap.String("path", req.URL.Path))
	return t.next.RoundTrip(req)
}

// call sends a JSON request and decodes a JSON response into out. A nil in
// or out skips the body in that direction.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var (
		resp *http.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = c.http.Get(ctx, endpoint)
	case http.MethodPost:
		resp, err = c.http.Post(ctx, endpoint, retry.WithBody("application/json", bytes.NewReader(body)))
	case http.MethodPut:
		resp, err = c.http.Put(ctx, endpoint, retry.WithBody("application/json", bytes.NewReader(body)))
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Error
		apiErr.Description = payload.ErrorDescription
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Description = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
