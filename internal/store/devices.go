package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegisterDeviceParams describes a device asking to bind itself.
type RegisterDeviceParams struct {
	UserID     string
	DeviceID   string
	Label      string
	UserAgent  string
	IPAddress  string
	MaxDevices int
}

// GetDeviceBinding returns the (user, device) row whether revoked or not.
func (s *Store) GetDeviceBinding(userID, deviceID string) (*models.Device, error) {
	var device models.Device
	err := s.db.Where("user_id = ? AND device_id = ?", userID, deviceID).First(&device).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

// GetDeviceByID returns a binding by its primary key.
func (s *Store) GetDeviceByID(id string) (*models.Device, error) {
	var device models.Device
	if err := s.db.Where("id = ?", id).First(&device).Error; err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

// ListDevices returns every binding a member ever registered, newest first.
func (s *Store) ListDevices(userID string) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&devices).
		Error
	return devices, err
}

// RegisterDevice binds a device to a member. An existing live binding is
// refreshed and returned; a revoked one yields core.ErrDeviceRevoked; a new
// one is refused with core.ErrMaxDeviceReached once the member already holds
// MaxDevices live bindings.
func (s *Store) RegisterDevice(p RegisterDeviceParams) (*models.Device, error) {
	var result models.Device

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Serialize registrations of the same member.
		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", p.UserID).
			First(&owner).Error; err != nil {
			return notFound(err)
		}

		now := time.Now()
		var existing models.Device
		err := tx.Where("user_id = ? AND device_id = ?", p.UserID, p.DeviceID).First(&existing).Error
		switch {
		case err == nil:
			if existing.Revoked {
				return core.ErrDeviceRevoked
			}
			existing.LastSeenAt = &now
			existing.IPAddress = p.IPAddress
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var active int64
		if err := tx.Model(&models.Device{}).
			Where("user_id = ? AND revoked = ?", p.UserID, false).
			Count(&active).Error; err != nil {
			return err
		}
		if active >= int64(p.MaxDevices) {
			return core.ErrMaxDeviceReached
		}

		result = models.Device{
			ID:         uuid.New().String(),
			DeviceID:   p.DeviceID,
			UserID:     p.UserID,
			Label:      p.Label,
			UserAgent:  p.UserAgent,
			IPAddress:  p.IPAddress,
			LastSeenAt: &now,
		}
		return tx.Create(&result).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another request bound the same device first.
		return s.GetDeviceBinding(p.UserID, p.DeviceID)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RevokeDevice revokes a binding by id and signs out its sessions.
func (s *Store) RevokeDevice(id string) (*models.Device, error) {
	var device models.Device

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&device).Error; err != nil {
			return notFound(err)
		}
		if device.Revoked {
			return nil
		}
		now := time.Now()
		device.Revoked = true
		device.RevokedAt = &now
		if err := tx.Save(&device).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).
			Where("user_id = ? AND device_id = ? AND revoked = ?", device.UserID, device.DeviceID, false).
			Updates(map[string]any{"revoked": true, "revoked_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// revokeOtherDevices revokes every live binding of userID except keepDeviceID
// and the sessions opened from them. It must run inside a transaction.
func revokeOtherDevices(tx *gorm.DB, userID, keepDeviceID string, now time.Time) (int64, error) {
	res := tx.Model(&models.Device{}).
		Where("user_id = ? AND device_id <> ? AND revoked = ?", userID, keepDeviceID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("revoke devices: %w", res.Error)
	}
	if err := tx.Model(&models.Session{}).
		Where("user_id = ? AND device_id <> ? AND revoked = ?", userID, keepDeviceID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now}).Error; err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return res.RowsAffected, nil
}

// CountActiveDeviceBindings counts non-revoked bindings across all members.
func (s *Store) CountActiveDeviceBindings() (int64, error) {
	var count int64
	err := s.db.Model(&models.Device{}).Where("revoked = ?", false).Count(&count).Error
	return count, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
