package services

import (
	"errors"
	"strings"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/store"
	"github.com/go-authgate/memberguard/internal/util"

	"go.uber.org/zap"
)

const (
	// PairingCodeLength is the number of digits in a pairing code.
	PairingCodeLength = 6
	// maxCodeAttempts bounds retries on code collisions.
	maxCodeAttempts = 5
)

var (
	ErrPairingCodeExhausted = errors.New("could not allocate a unique pairing code")
	ErrInvalidPairingCode   = errors.New("pairing code must be 6 digits")
)

// CreatePairingRequest identifies the unbound device asking for a code.
type CreatePairingRequest struct {
	UserID    string
	DeviceID  string
	Label     string
	UserAgent string
}

// PairingService issues and decides pairing codes.
type PairingService struct {
	store   *store.Store
	ttl     time.Duration
	metrics core.Recorder
	// generateCode is swapped in tests to force collisions.
	generateCode func() (string, error)
}

func NewPairingService(s *store.Store, ttl time.Duration, m core.Recorder) *PairingService {
	return &PairingService{
		store:   s,
		ttl:     ttl,
		metrics: m,
		generateCode: func() (string, error) {
			return util.RandomDigits(PairingCodeLength)
		},
	}
}

// NormalizeCode strips everything but digits, so "123-456" and "123 456"
// match the stored "123456".
func NormalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)
}

// FindActivePairing returns the newest pending, unexpired code of the device,
// or nil.
func (s *PairingService) FindActivePairing(userID, deviceID string) (*models.DevicePairing, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	pairing, err := s.store.FindActivePairing(userID, deviceID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, nil
	}
	return pairing, err
}

// CreatePairingCode returns the device's active code when one exists and
// otherwise stores a fresh one.
func (s *PairingService) CreatePairingCode(req CreatePairingRequest) (*models.DevicePairing, error) {
	active, err := s.FindActivePairing(req.UserID, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		s.metrics.RecordPairingCode("reused")
		return active, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, err
		}
		pairing := &models.DevicePairing{
			Code:      code,
			UserID:    req.UserID,
			DeviceID:  req.DeviceID,
			Label:     req.Label,
			UserAgent: req.UserAgent,
			Status:    string(core.PairingPending),
			ExpiresAt: time.Now().Add(s.ttl),
		}
		err = s.store.CreatePairing(pairing)
		if errors.Is(err, store.ErrPairingCodeConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.RecordPairingCode("created")
		zap.L().Info("pairing code created",
			zap.String("user_id", req.UserID),
			zap.String("device_id", req.DeviceID),
			zap.Time("expires_at", pairing.ExpiresAt),
		)
		return pairing, nil
	}
	return nil, ErrPairingCodeExhausted
}

// GetPairing returns one of the member's codes for polling. A pending code
// past its window is reported as expired.
func (s *PairingService) GetPairing(userID, code string) (*models.DevicePairing, error) {
	code = NormalizeCode(code)
	if len(code) != PairingCodeLength {
		return nil, ErrInvalidPairingCode
	}
	pairing, err := s.store.GetPairingByCode(code)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, core.ErrPairingNotFound
		}
		return nil, err
	}
	if pairing.UserID != userID {
		return nil, core.ErrPairingNotFound
	}
	if pairing.IsPending() && pairing.IsExpired() {
		pairing.Status = string(core.PairingExpired)
	}
	return pairing, nil
}

// requireTrustedDevice fails unless deviceID holds a live binding on userID.
func (s *PairingService) requireTrustedDevice(userID, deviceID string) error {
	if deviceID == "" {
		return core.ErrDeviceNotTrusted
	}
	binding, err := s.store.GetDeviceBinding(userID, deviceID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return core.ErrDeviceNotTrusted
	}
	if err != nil {
		return err
	}
	if !binding.IsActive() {
		return core.ErrDeviceNotTrusted
	}
	return nil
}

// ApprovePairing lets a trusted device approve a code. The member's other
// bindings are revoked and the pairing device becomes the bound one.
func (s *PairingService) ApprovePairing(userID, code, approverDeviceID string) (*models.DevicePairing, error) {
	code = NormalizeCode(code)
	if len(code) != PairingCodeLength {
		return nil, ErrInvalidPairingCode
	}
	if err := s.requireTrustedDevice(userID, approverDeviceID); err != nil {
		return nil, err
	}

	pairing, revoked, err := s.store.ApprovePairing(store.ApprovePairingParams{
		Code:             code,
		UserID:           userID,
		ApproverDeviceID: approverDeviceID,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPairingCode("approved")
	s.metrics.RecordPairingApproval(time.Since(pairing.CreatedAt))
	for i := int64(0); i < revoked; i++ {
		s.metrics.RecordDeviceRevoked("pairing")
	}
	zap.L().Info("pairing approved",
		zap.String("user_id", userID),
		zap.String("device_id", pairing.DeviceID),
		zap.String("approved_by", approverDeviceID),
		zap.Int64("revoked_bindings", revoked),
	)
	return pairing, nil
}

// RejectPairing lets a trusted device refuse a code.
func (s *PairingService) RejectPairing(userID, code, approverDeviceID string) (*models.DevicePairing, error) {
	code = NormalizeCode(code)
	if len(code) != PairingCodeLength {
		return nil, ErrInvalidPairingCode
	}
	if err := s.requireTrustedDevice(userID, approverDeviceID); err != nil {
		return nil, err
	}

	pairing, err := s.store.RejectPairing(code, userID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPairingCode("rejected")
	return pairing, nil
}

// SweepExpired moves pending codes past their window to expired.
func (s *PairingService) SweepExpired() (int64, error) {
	n, err := s.store.ExpireStalePairings()
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < n; i++ {
		s.metrics.RecordPairingCode("expired")
	}
	return n, nil
}
