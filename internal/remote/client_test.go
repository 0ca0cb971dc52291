package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-authgate/memberguard/internal/clientstore"
	"github.com/go-authgate/memberguard/internal/core"

	httpclient "github.com/appleboy/go-httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newStubClient(t *testing.T, mux *http.ServeMux, opts ...Option) (*Client, *clientstore.MemoryStorage) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	storage := clientstore.NewMemoryStorage()
	c, err := New(srv.URL+"/", storage, append([]Option{
		WithServiceAuth(httpclient.AuthModeSimple, "anon-key", "apikey"),
		WithRetries(2, time.Millisecond, 5*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)...)
	require.NoError(t, err)
	return c, storage
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"MAX_DEVICE_REACHED", core.ErrMaxDeviceReached},
		{"DEVICE_REVOKED", core.ErrDeviceRevoked},
		{"PAIRING_NOT_FOUND", core.ErrPairingNotFound},
		{"PAIRING_EXPIRED", core.ErrPairingExpired},
		{"PAIRING_NOT_PENDING", core.ErrPairingNotPending},
		{"invalid_credentials", core.ErrInvalidCredentials},
		{"unauthorized", core.ErrNoSession},
		{"forbidden", core.ErrDeviceNotTrusted},
	}
	for _, tt := range tests {
		err := error(&APIError{StatusCode: http.StatusConflict, Code: tt.code, Description: "x"})
		assert.ErrorIs(t, err, tt.want, tt.code)
	}

	unknown := &APIError{StatusCode: http.StatusBadRequest, Code: "invalid_request"}
	assert.Nil(t, unknown.Unwrap())
	assert.Equal(t, "invalid_request (HTTP 400)", unknown.Error())
}

func TestRegisterDeviceSendsHeadersAndMapsCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/register_device", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-1", r.Header.Get(core.HeaderDeviceID))

		var body deviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, deviceRequest{DeviceID: "dev-1", Label: "Desktop", UserAgent: "agent"}, body)

		writeJSON(w, http.StatusConflict, map[string]string{
			"error":             "MAX_DEVICE_REACHED",
			"error_description": "account already has a bound device",
		})
	})
	c, storage := newStubClient(t, mux)
	require.NoError(t, storage.Set(core.KeyDeviceID, "dev-1"))
	require.NoError(t, c.storeSession(&core.AuthSession{UserID: "u1", AccessToken: "tok-1"}))

	err := c.RegisterDevice(context.Background(), "dev-1", "Desktop", "agent")
	require.ErrorIs(t, err, core.ErrMaxDeviceReached)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "MAX_DEVICE_REACHED")
}

func TestCheckBinding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("device_id") {
		case "dev-bound":
			writeJSON(w, http.StatusOK, core.DeviceBinding{DeviceID: "dev-bound", UserID: "u1", Revoked: true})
		case "dev-other":
			writeJSON(w, http.StatusOK, core.DeviceBinding{DeviceID: "dev-other", UserID: "u2"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		}
	})
	c, _ := newStubClient(t, mux)

	b, err := c.CheckBinding(context.Background(), "u1", "dev-bound")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Revoked)

	b, err = c.CheckBinding(context.Background(), "u1", "dev-unknown")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = c.CheckBinding(context.Background(), "u1", "dev-other")
	assert.Error(t, err)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/create_pairing_code", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server_error"})
			return
		}
		var body deviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dev-1", body.DeviceID)
		writeJSON(w, http.StatusOK, core.PairingRequest{Code: "123456", Status: core.PairingPending})
	})
	c, _ := newStubClient(t, mux)

	code, err := c.CreatePairingCode(context.Background(), "dev-1", "Mobile", "agent")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFindActivePairing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/device_pairing", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("active"))
		if q.Get("device_id") == "dev-waiting" {
			writeJSON(w, http.StatusOK, core.PairingRequest{Code: "654321", Status: core.PairingPending})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "PAIRING_NOT_FOUND"})
	})
	c, _ := newStubClient(t, mux)

	p, err := c.FindActivePairing(context.Background(), "dev-waiting")
	require.NoError(t, err)
	assert.Equal(t, "654321", p.Code)

	p, err = c.FindActivePairing(context.Background(), "dev-idle")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSessionLifecycle(t *testing.T) {
	var revoked atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct-horse" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials"})
			return
		}
		assert.NotEmpty(t, body["device_id"])
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok-1",
			"token_type":   "bearer",
			"expires_at":   time.Now().Add(time.Hour),
			"user":         core.Profile{ID: "u1", Email: body["email"]},
		})
	})
	mux.HandleFunc("GET /auth/v1/session", func(w http.ResponseWriter, r *http.Request) {
		if revoked.Load() || r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": "u1", "expires_at": time.Now().Add(time.Hour)})
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c, storage := newStubClient(t, mux)

	var events []core.AuthEvent
	unsubscribe := c.OnAuthStateChange(func(e core.AuthEvent, _ *core.AuthSession) { events = append(events, e) })
	defer unsubscribe()

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = c.SignInWithPassword(context.Background(), "member@example.com", "nope")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	s, err = c.SignInWithPassword(context.Background(), "member@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	_, err = storage.Get(core.KeyAuthToken)
	require.NoError(t, err)
	_, err = storage.Get(core.KeyDeviceID)
	require.NoError(t, err, "sign-in creates the device id")

	s, err = c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UserID)

	require.NoError(t, c.Refresh(context.Background()))

	revoked.Store(true)
	assert.ErrorIs(t, c.Refresh(context.Background()), core.ErrNoSession)
	_, err = storage.Get(core.KeyAuthToken)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)

	assert.Equal(t, []core.AuthEvent{core.EventSignedIn, core.EventTokenRefreshed, core.EventSignedOut}, events)

	// Signing out without a session is a no-op
	require.NoError(t, c.SignOut(context.Background()))
	assert.Len(t, events, 3)
}

func TestSignOutDropsTokenEvenWhenServerFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	})
	c, storage := newStubClient(t, mux)
	require.NoError(t, c.storeSession(&core.AuthSession{UserID: "u1", AccessToken: "tok-1"}))

	err := c.SignOut(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	_, err = storage.Get(core.KeyAuthToken)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)
}

func TestFetchProfileRejectsOtherMember(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, core.Profile{ID: "u1", Email: "member@example.com", Status: "active"})
	})
	c, _ := newStubClient(t, mux)

	p, err := c.FetchProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", p.Email)

	_, err = c.FetchProfile(context.Background(), "u2")
	assert.Error(t, err)
}

func TestGetSessionForgetsExpiredToken(t *testing.T) {
	var checks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/v1/session", func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": "u1", "expires_at": time.Now().Add(time.Hour)})
	})
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_760_000_000_000))
	c, storage := newStubClient(t, mux, WithClock(clock))
	require.NoError(t, c.storeSession(&core.AuthSession{
		UserID:      "u1",
		AccessToken: "tok-1",
		ExpiresAt:   clock.Now().Add(time.Hour),
	}))

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int32(1), checks.Load())

	clock.Advance(time.Hour + time.Second)
	s, err = c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, int32(1), checks.Load(), "an expired token is not sent")
	_, err = storage.Get(core.KeyAuthToken)
	assert.ErrorIs(t, err, core.ErrStorageKeyNotFound)
}

func TestRetriedPostsKeepBodyAndHeaders(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/approve_pairing", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123456", body["code"])
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "server_error"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newStubClient(t, mux)
	require.NoError(t, c.storeSession(&core.AuthSession{UserID: "u1", AccessToken: "tok-1"}))

	require.NoError(t, c.ApprovePairing(context.Background(), "123456"))
	assert.Equal(t, int32(2), calls.Load())
}
