package services

import (
	"context"
	"testing"

	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/metrics"
	"github.com/go-authgate/memberguard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	// Use in-memory SQLite database for testing
	cfg := &config.Config{
		DefaultAdminPassword: "", // Use random password in tests
	}
	s, err := store.New("sqlite", ":memory:", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func registerRequest(userID, deviceID string) RegisterDeviceRequest {
	return RegisterDeviceRequest{
		UserID:    userID,
		DeviceID:  deviceID,
		Label:     "Desktop",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		IPAddress: "10.0.0.1",
	}
}

func TestDeviceService_CheckBinding(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 1, metrics.NewNoopMetrics())
	u := makeTestUser(t, db)

	binding, err := svc.CheckBinding(u.ID, "dev-a")
	require.NoError(t, err)
	assert.Nil(t, binding, "never-registered device has no row")

	_, err = svc.CheckBinding(u.ID, "")
	assert.ErrorIs(t, err, ErrDeviceIDRequired)

	_, err = svc.RegisterDevice(context.Background(), registerRequest(u.ID, "dev-a"))
	require.NoError(t, err)

	binding, err = svc.CheckBinding(u.ID, "dev-a")
	require.NoError(t, err)
	require.NotNil(t, binding)
	assert.False(t, binding.Revoked)
	assert.Equal(t, "Desktop", binding.Label)
}

func TestDeviceService_RegisterIsIdempotent(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 1, metrics.NewNoopMetrics())
	u := makeTestUser(t, db)
	ctx := context.Background()

	first, err := svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-a"))
	require.NoError(t, err)
	second, err := svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-a"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	devices, err := svc.ListDevices(u.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestDeviceService_MaxDeviceReached(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 1, metrics.NewNoopMetrics())
	u := makeTestUser(t, db)
	ctx := context.Background()

	_, err := svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-a"))
	require.NoError(t, err)

	_, err = svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-b"))
	assert.ErrorIs(t, err, core.ErrMaxDeviceReached)

	// The refused device gets no row, so a re-check reports it unbound.
	binding, err := svc.CheckBinding(u.ID, "dev-b")
	require.NoError(t, err)
	assert.Nil(t, binding)
}

func TestDeviceService_HigherCap(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 2, metrics.NewNoopMetrics())
	u := makeTestUser(t, db)
	ctx := context.Background()

	for _, id := range []string{"dev-a", "dev-b"} {
		_, err := svc.RegisterDevice(ctx, registerRequest(u.ID, id))
		require.NoError(t, err)
	}
	_, err := svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-c"))
	assert.ErrorIs(t, err, core.ErrMaxDeviceReached)
}

func TestDeviceService_CapIsPerMember(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 1, metrics.NewNoopMetrics())
	alice := makeTestUser(t, db)
	bob := makeTestUser(t, db)
	ctx := context.Background()

	_, err := svc.RegisterDevice(ctx, registerRequest(alice.ID, "shared-device"))
	require.NoError(t, err)
	_, err = svc.RegisterDevice(ctx, registerRequest(bob.ID, "shared-device"))
	require.NoError(t, err)
}

func TestDeviceService_RevokeDevice(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 1, metrics.NewNoopMetrics())
	u := makeTestUser(t, db)
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-a"))
	require.NoError(t, err)

	revoked, err := svc.RevokeDevice(device.ID, "admin")
	require.NoError(t, err)
	assert.True(t, revoked.Revoked)
	assert.NotNil(t, revoked.RevokedAt)

	// A revoked binding cannot re-register itself; it must pair again.
	_, err = svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-a"))
	assert.ErrorIs(t, err, core.ErrDeviceRevoked)

	// Revoked bindings no longer count against the cap.
	_, err = svc.RegisterDevice(ctx, registerRequest(u.ID, "dev-b"))
	assert.NoError(t, err)

	_, err = svc.RevokeDevice("missing", "admin")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestNewDeviceService_ClampsCap(t *testing.T) {
	db := setupTestStore(t)
	svc := NewDeviceService(db, 0, metrics.NewNoopMetrics())
	assert.Equal(t, 1, svc.maxDevices)
}
