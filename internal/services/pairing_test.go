package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/metrics"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairingFixture struct {
	db       *store.Store
	devices  *DeviceService
	pairings *PairingService
	metrics  *metrics.Metrics
	member   *models.User
}

// newPairingFixture returns a member whose "trusted" device is already bound.
func newPairingFixture(t *testing.T) *pairingFixture {
	t.Helper()
	db := setupTestStore(t)
	m := metrics.New(prometheus.NewRegistry())
	f := &pairingFixture{
		db:       db,
		devices:  NewDeviceService(db, 1, m),
		pairings: NewPairingService(db, 10*time.Minute, m),
		metrics:  m,
		member:   makeTestUser(t, db),
	}
	_, err := f.devices.RegisterDevice(context.Background(), registerRequest(f.member.ID, "trusted"))
	require.NoError(t, err)
	return f
}

func (f *pairingFixture) request(deviceID string) CreatePairingRequest {
	return CreatePairingRequest{
		UserID:    f.member.ID,
		DeviceID:  deviceID,
		Label:     "Mobile",
		UserAgent: "Mozilla/5.0 (Linux; Android 14) Mobile",
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123456", "123456"},
		{"123-456", "123456"},
		{" 12 34 56 ", "123456"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCode(tt.in), tt.in)
	}
}

func TestCreatePairingCode(t *testing.T) {
	f := newPairingFixture(t)

	pairing, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)
	assert.Len(t, pairing.Code, PairingCodeLength)
	assert.Regexp(t, `^\d{6}$`, pairing.Code)
	assert.Equal(t, string(core.PairingPending), pairing.Status)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), pairing.ExpiresAt, 5*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PairingCodesTotal.WithLabelValues("created")))
}

func TestCreatePairingCode_ReusesActiveCode(t *testing.T) {
	f := newPairingFixture(t)

	first, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)
	second, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PairingCodesTotal.WithLabelValues("reused")))

	var count int64
	require.NoError(t, f.db.DB().Model(&models.DevicePairing{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreatePairingCode_ExpiredCodeIsNotReused(t *testing.T) {
	f := newPairingFixture(t)

	first, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)
	require.NoError(t, f.db.DB().Model(&models.DevicePairing{}).
		Where("code = ?", first.Code).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	second, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)
}

func TestCreatePairingCode_CollisionRetry(t *testing.T) {
	f := newPairingFixture(t)

	codes := []string{"111111", "111111", "222222"}
	f.pairings.generateCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := f.pairings.CreatePairingCode(f.request("phone-1"))
	require.NoError(t, err)
	assert.Equal(t, "111111", first.Code)

	second, err := f.pairings.CreatePairingCode(f.request("phone-2"))
	require.NoError(t, err)
	assert.Equal(t, "222222", second.Code)
}

func TestCreatePairingCode_Exhausted(t *testing.T) {
	f := newPairingFixture(t)
	f.pairings.generateCode = func() (string, error) { return "999999", nil }

	_, err := f.pairings.CreatePairingCode(f.request("phone-1"))
	require.NoError(t, err)

	_, err = f.pairings.CreatePairingCode(f.request("phone-2"))
	assert.ErrorIs(t, err, ErrPairingCodeExhausted)
}

func TestGetPairing(t *testing.T) {
	f := newPairingFixture(t)
	pairing, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)

	got, err := f.pairings.GetPairing(f.member.ID, pairing.Code[:3]+"-"+pairing.Code[3:])
	require.NoError(t, err)
	assert.Equal(t, pairing.Code, got.Code)

	_, err = f.pairings.GetPairing(f.member.ID, "12")
	assert.ErrorIs(t, err, ErrInvalidPairingCode)

	other := makeTestUser(t, f.db)
	_, err = f.pairings.GetPairing(other.ID, pairing.Code)
	assert.ErrorIs(t, err, core.ErrPairingNotFound, "codes of other members are invisible")
}

func TestGetPairing_ReportsExpired(t *testing.T) {
	f := newPairingFixture(t)
	pairing, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)
	require.NoError(t, f.db.DB().Model(&models.DevicePairing{}).
		Where("code = ?", pairing.Code).
		Update("expires_at", time.Now().Add(-time.Second)).Error)

	got, err := f.pairings.GetPairing(f.member.ID, pairing.Code)
	require.NoError(t, err)
	assert.Equal(t, string(core.PairingExpired), got.Status)
}

func TestApprovePairing(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()

	// A session opened on the trusted device ends with the approval.
	require.NoError(t, f.db.CreateSession(&models.Session{
		ID:        "trusted-session",
		UserID:    f.member.ID,
		DeviceID:  "trusted",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	pairing, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)

	approved, err := f.pairings.ApprovePairing(f.member.ID, pairing.Code, "trusted")
	require.NoError(t, err)
	assert.Equal(t, string(core.PairingApproved), approved.Status)
	assert.Equal(t, "trusted", approved.ApprovedByDevice)

	oldBinding, err := f.devices.CheckBinding(f.member.ID, "trusted")
	require.NoError(t, err)
	assert.True(t, oldBinding.Revoked)

	newBinding, err := f.devices.CheckBinding(f.member.ID, "new-phone")
	require.NoError(t, err)
	require.NotNil(t, newBinding)
	assert.False(t, newBinding.Revoked)
	assert.Equal(t, "Mobile", newBinding.Label)

	session, err := f.db.GetSession("trusted-session")
	require.NoError(t, err)
	assert.True(t, session.Revoked)

	// The new device already holds its binding; registering again is a refresh.
	_, err = f.devices.RegisterDevice(ctx, registerRequest(f.member.ID, "new-phone"))
	assert.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PairingCodesTotal.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DeviceRevocationsTotal.WithLabelValues("pairing")))
}

func TestApprovePairing_RequiresTrustedDevice(t *testing.T) {
	f := newPairingFixture(t)
	pairing, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		approver string
	}{
		{"no device header", ""},
		{"unbound device approving itself", "new-phone"},
		{"unknown device", "somewhere-else"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pairings.ApprovePairing(f.member.ID, pairing.Code, tt.approver)
			assert.ErrorIs(t, err, core.ErrDeviceNotTrusted)
		})
	}
}

func TestApprovePairing_Errors(t *testing.T) {
	f := newPairingFixture(t)

	_, err := f.pairings.ApprovePairing(f.member.ID, "000000", "trusted")
	assert.ErrorIs(t, err, core.ErrPairingNotFound)

	_, err = f.pairings.ApprovePairing(f.member.ID, "12-34", "trusted")
	assert.ErrorIs(t, err, ErrInvalidPairingCode)

	expired, err := f.pairings.CreatePairingCode(f.request("phone-1"))
	require.NoError(t, err)
	require.NoError(t, f.db.DB().Model(&models.DevicePairing{}).
		Where("code = ?", expired.Code).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
	_, err = f.pairings.ApprovePairing(f.member.ID, expired.Code, "trusted")
	assert.ErrorIs(t, err, core.ErrPairingExpired)

	rejected, err := f.pairings.CreatePairingCode(f.request("phone-2"))
	require.NoError(t, err)
	_, err = f.pairings.RejectPairing(f.member.ID, rejected.Code, "trusted")
	require.NoError(t, err)
	_, err = f.pairings.ApprovePairing(f.member.ID, rejected.Code, "trusted")
	assert.ErrorIs(t, err, core.ErrPairingNotPending)
}

func TestRejectPairing(t *testing.T) {
	f := newPairingFixture(t)
	pairing, err := f.pairings.CreatePairingCode(f.request("new-phone"))
	require.NoError(t, err)

	_, err = f.pairings.RejectPairing(f.member.ID, pairing.Code, "new-phone")
	assert.ErrorIs(t, err, core.ErrDeviceNotTrusted)

	rejected, err := f.pairings.RejectPairing(f.member.ID, pairing.Code, "trusted")
	require.NoError(t, err)
	assert.Equal(t, string(core.PairingRejected), rejected.Status)

	// The trusted device keeps its binding.
	binding, err := f.devices.CheckBinding(f.member.ID, "trusted")
	require.NoError(t, err)
	assert.False(t, binding.Revoked)
}

func TestSweepExpired(t *testing.T) {
	f := newPairingFixture(t)

	live, err := f.pairings.CreatePairingCode(f.request("phone-1"))
	require.NoError(t, err)
	stale, err := f.pairings.CreatePairingCode(f.request("phone-2"))
	require.NoError(t, err)
	require.NoError(t, f.db.DB().Model(&models.DevicePairing{}).
		Where("code = ?", stale.Code).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	n, err := f.pairings.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.db.GetPairingByCode(stale.Code)
	require.NoError(t, err)
	assert.Equal(t, string(core.PairingExpired), got.Status)

	got, err = f.db.GetPairingByCode(live.Code)
	require.NoError(t, err)
	assert.Equal(t, string(core.PairingPending), got.Status)
}
