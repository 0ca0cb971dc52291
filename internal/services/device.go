package services

import (
	"context"
	"errors"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"
	"github.com/go-authgate/memberguard/internal/store"

	"go.uber.org/zap"
)

var (
	ErrDeviceIDRequired = errors.New("device_id is required")
	ErrDeviceNotFound   = errors.New("device binding not found")
)

// Registration outcomes recorded by RegisterDevice.
const (
	RegistrationRegistered = "registered"
	RegistrationExisting   = "existing"
	RegistrationMaxReached = "max_reached"
	RegistrationRevoked    = "revoked"
	RegistrationError      = "error"
)

// RegisterDeviceRequest is a device asking to bind itself to the signed-in
// member.
type RegisterDeviceRequest struct {
	UserID    string
	DeviceID  string
	Label     string
	UserAgent string
	IPAddress string
}

// DeviceService manages device bindings under the per-member device cap.
type DeviceService struct {
	store      *store.Store
	maxDevices int
	metrics    core.Recorder
}

func NewDeviceService(s *store.Store, maxDevices int, m core.Recorder) *DeviceService {
	if maxDevices < 1 {
		maxDevices = 1
	}
	return &DeviceService{store: s, maxDevices: maxDevices, metrics: m}
}

// CheckBinding returns the binding of deviceID on userID, revoked or not.
// It returns nil without error when the device was never bound.
func (s *DeviceService) CheckBinding(userID, deviceID string) (*models.Device, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	device, err := s.store.GetDeviceBinding(userID, deviceID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, nil
	}
	return device, err
}

// RegisterDevice binds the device, refreshing an existing live binding. It
// returns core.ErrMaxDeviceReached at the cap and core.ErrDeviceRevoked for a
// binding an approval already revoked.
func (s *DeviceService) RegisterDevice(
	ctx context.Context,
	req RegisterDeviceRequest,
) (*models.Device, error) {
	if req.DeviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	existing, err := s.CheckBinding(req.UserID, req.DeviceID)
	if err != nil {
		s.metrics.RecordDeviceRegistration(RegistrationError)
		return nil, err
	}

	device, err := s.store.RegisterDevice(store.RegisterDeviceParams{
		UserID:     req.UserID,
		DeviceID:   req.DeviceID,
		Label:      req.Label,
		UserAgent:  req.UserAgent,
		IPAddress:  req.IPAddress,
		MaxDevices: s.maxDevices,
	})
	switch {
	case errors.Is(err, core.ErrMaxDeviceReached):
		s.metrics.RecordDeviceRegistration(RegistrationMaxReached)
		zap.L().Info("device registration refused at cap",
			zap.String("user_id", req.UserID),
			zap.String("device_id", req.DeviceID),
			zap.Int("max_devices", s.maxDevices),
		)
		return nil, err
	case errors.Is(err, core.ErrDeviceRevoked):
		s.metrics.RecordDeviceRegistration(RegistrationRevoked)
		return nil, err
	case err != nil:
		s.metrics.RecordDeviceRegistration(RegistrationError)
		return nil, err
	}

	if existing != nil && existing.IsActive() {
		s.metrics.RecordDeviceRegistration(RegistrationExisting)
	} else {
		s.metrics.RecordDeviceRegistration(RegistrationRegistered)
		zap.L().Info("device registered",
			zap.String("user_id", req.UserID),
			zap.String("device_id", req.DeviceID),
			zap.String("label", req.Label),
		)
	}
	return device, nil
}

// ListDevices returns every binding of the member, newest first.
func (s *DeviceService) ListDevices(userID string) ([]models.Device, error) {
	return s.store.ListDevices(userID)
}

// RevokeDevice revokes a binding by id and signs out its sessions.
func (s *DeviceService) RevokeDevice(id, reason string) (*models.Device, error) {
	before, err := s.store.GetDeviceByID(id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	device, err := s.store.RevokeDevice(id)
	if err != nil {
		return nil, err
	}
	if before.IsActive() {
		s.metrics.RecordDeviceRevoked(reason)
		zap.L().Info("device revoked",
			zap.String("user_id", device.UserID),
			zap.String("device_id", device.DeviceID),
			zap.String("reason", reason),
		)
	}
	return device, nil
}
