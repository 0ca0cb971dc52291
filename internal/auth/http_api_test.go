package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-authgate/memberguard/internal/client"
	"github.com/go-authgate/memberguard/internal/config"

	httpclient "github.com/appleboy/go-httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiConfig(url string) *config.Config {
	return &config.Config{
		HTTPAPIURL:     url,
		HTTPAPITimeout: 10 * time.Second,
	}
}

// createTestProvider builds the provider the way bootstrap does.
func createTestProvider(t *testing.T, cfg *config.Config) *HTTPAPIAuthProvider {
	t.Helper()
	retryClient, err := client.CreateRetryClient(client.RetryConfig{
		AuthMode:      cfg.HTTPAPIAuthMode,
		AuthSecret:    cfg.HTTPAPIAuthSecret,
		AuthHeader:    cfg.HTTPAPIAuthHeader,
		Timeout:       cfg.HTTPAPITimeout,
		MaxRetries:    cfg.HTTPAPIMaxRetries,
		RetryDelay:    cfg.HTTPAPIRetryDelay,
		MaxRetryDelay: cfg.HTTPAPIMaxRetryDelay,
	})
	require.NoError(t, err)
	return NewHTTPAPIAuthProvider(cfg, retryClient)
}

func TestHTTPAPIAuthProvider_Authenticate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req APIAuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "member@example.com", req.Email)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(APIAuthResponse{
			Success:  true,
			UserID:   "ext-user-123",
			Email:    "member@example.com",
			FullName: "Test Member",
		})
	}))
	defer server.Close()

	provider := createTestProvider(t, apiConfig(server.URL))
	result, err := provider.Authenticate(context.Background(), "member@example.com", "password123")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ext-user-123", result.ExternalID)
	assert.Equal(t, "member@example.com", result.Email)
	assert.Equal(t, "Test Member", result.FullName)
}

func TestHTTPAPIAuthProvider_Authenticate_MissingUserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIAuthResponse{Success: true})
	}))
	defer server.Close()

	result, err := createTestProvider(t, apiConfig(server.URL)).
		Authenticate(context.Background(), "member@example.com", "pw")

	assert.ErrorIs(t, err, ErrHTTPAPIInvalidResp)
	assert.Nil(t, result)
}

func TestHTTPAPIAuthProvider_Authenticate_AuthFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIAuthResponse{Success: false, Message: "Invalid credentials"})
	}))
	defer server.Close()

	_, err := createTestProvider(t, apiConfig(server.URL)).
		Authenticate(context.Background(), "member@example.com", "wrong")

	assert.ErrorIs(t, err, ErrHTTPAPIAuthFailed)
}

func TestHTTPAPIAuthProvider_Authenticate_Non2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(APIAuthResponse{Message: "bad password"})
	}))
	defer server.Close()

	_, err := createTestProvider(t, apiConfig(server.URL)).
		Authenticate(context.Background(), "member@example.com", "wrong")

	require.ErrorIs(t, err, ErrHTTPAPIAuthFailed)
	assert.Contains(t, err.Error(), "HTTP 401 - bad password")
}

func TestHTTPAPIAuthProvider_Authenticate_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := createTestProvider(t, apiConfig(server.URL)).
		Authenticate(context.Background(), "member@example.com", "pw")

	assert.ErrorIs(t, err, ErrHTTPAPIInvalidResp)
}

func TestHTTPAPIAuthProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, body, "retried request must carry the body again")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(APIAuthResponse{Success: true, UserID: "ext-1"})
	}))
	defer server.Close()

	cfg := apiConfig(server.URL)
	cfg.HTTPAPIMaxRetries = 2
	cfg.HTTPAPIRetryDelay = 10 * time.Millisecond
	cfg.HTTPAPIMaxRetryDelay = 50 * time.Millisecond

	result, err := createTestProvider(t, cfg).Authenticate(context.Background(), "m@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", result.ExternalID)
	assert.Equal(t, "m@example.com", result.Email)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPAPIAuthProvider_Name(t *testing.T) {
	assert.Equal(t, "http_api", createTestProvider(t, apiConfig("http://localhost")).Name())
}

func TestHTTPAPIAuthProvider_SimpleAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "default header", header: "", want: "X-API-Secret"},
		{name: "custom header", header: "X-Custom-Auth", want: "X-Custom-Auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received = r.Header.Get(tt.want)
				_ = json.NewEncoder(w).Encode(APIAuthResponse{Success: true, UserID: "u"})
			}))
			defer server.Close()

			cfg := apiConfig(server.URL)
			cfg.HTTPAPIAuthMode = "simple"
			cfg.HTTPAPIAuthSecret = "my-secret-key"
			cfg.HTTPAPIAuthHeader = tt.header

			_, err := createTestProvider(t, cfg).Authenticate(context.Background(), "m@example.com", "pw")
			require.NoError(t, err)
			assert.Equal(t, "my-secret-key", received)
		})
	}
}

func TestHTTPAPIAuthProvider_HMACAuth_ValidSignature(t *testing.T) {
	verifier := httpclient.NewAuthConfig(httpclient.AuthModeHMAC, "hmac-secret")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := verifier.VerifyHMACSignature(r, time.Minute); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(APIAuthResponse{Message: "bad signature"})
			return
		}
		var req APIAuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m@example.com", req.Email)
		_ = json.NewEncoder(w).Encode(APIAuthResponse{Success: true, UserID: "u"})
	}))
	defer server.Close()

	cfg := apiConfig(server.URL)
	cfg.HTTPAPIAuthMode = "hmac"
	cfg.HTTPAPIAuthSecret = "hmac-secret"
	_, err := createTestProvider(t, cfg).Authenticate(context.Background(), "m@example.com", "pw")
	assert.NoError(t, err)

	cfg.HTTPAPIAuthSecret = "other-secret"
	_, err = createTestProvider(t, cfg).Authenticate(context.Background(), "m@example.com", "pw")
	assert.ErrorIs(t, err, ErrHTTPAPIAuthFailed)
}

func TestHTTPAPIAuthProvider_NoAuth_NoHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-API-Secret"))
		assert.Empty(t, r.Header.Get("X-Signature"))
		_ = json.NewEncoder(w).Encode(APIAuthResponse{Success: true, UserID: "u"})
	}))
	defer server.Close()

	_, err := createTestProvider(t, apiConfig(server.URL)).
		Authenticate(context.Background(), "m@example.com", "pw")
	assert.NoError(t, err)
}
