package store

import (
	"errors"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApprovePairingParams identifies the code and the trusted device approving it.
type ApprovePairingParams struct {
	Code             string
	UserID           string
	ApproverDeviceID string
}

// CreatePairing stores a new pending code. A code already present in the
// table yields ErrPairingCodeConflict.
func (s *Store) CreatePairing(p *models.DevicePairing) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.DevicePairing{}).Where("code = ?", p.Code).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrPairingCodeConflict
		}
		return tx.Create(p).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPairingCodeConflict
	}
	return err
}

// FindActivePairing returns the newest pending, unexpired code of a device.
func (s *Store) FindActivePairing(userID, deviceID string) (*models.DevicePairing, error) {
	var pairing models.DevicePairing
	err := s.db.Where(
		"user_id = ? AND device_id = ? AND status = ? AND expires_at > ?",
		userID, deviceID, string(core.PairingPending), time.Now(),
	).
		Order("created_at DESC").
		First(&pairing).
		Error
	if err != nil {
		return nil, notFound(err)
	}
	return &pairing, nil
}

func (s *Store) GetPairingByCode(code string) (*models.DevicePairing, error) {
	var pairing models.DevicePairing
	if err := s.db.Where("code = ?", code).First(&pairing).Error; err != nil {
		return nil, notFound(err)
	}
	return &pairing, nil
}

// ApprovePairing atomically marks a pending code approved, revokes the
// member's other bindings and binds (or re-binds) the pairing device. It
// returns the approved pairing and how many bindings were revoked.
func (s *Store) ApprovePairing(p ApprovePairingParams) (*models.DevicePairing, int64, error) {
	var (
		pairing models.DevicePairing
		revoked int64
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ? AND user_id = ?", p.Code, p.UserID).
			First(&pairing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrPairingNotFound
			}
			return err
		}
		if !pairing.IsPending() {
			return core.ErrPairingNotPending
		}
		if pairing.IsExpired() {
			return core.ErrPairingExpired
		}

		now := time.Now()
		n, err := revokeOtherDevices(tx, pairing.UserID, pairing.DeviceID, now)
		if err != nil {
			return err
		}
		revoked = n

		var binding models.Device
		err = tx.Where("user_id = ? AND device_id = ?", pairing.UserID, pairing.DeviceID).First(&binding).Error
		switch {
		case err == nil:
			binding.Revoked = false
			binding.RevokedAt = nil
			binding.Label = pairing.Label
			binding.UserAgent = pairing.UserAgent
			if err := tx.Save(&binding).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			binding = models.Device{
				ID:        uuid.New().String(),
				DeviceID:  pairing.DeviceID,
				UserID:    pairing.UserID,
				Label:     pairing.Label,
				UserAgent: pairing.UserAgent,
			}
			if err := tx.Create(&binding).Error; err != nil {
				return err
			}
		default:
			return err
		}

		pairing.Status = string(core.PairingApproved)
		pairing.ApprovedByDevice = p.ApproverDeviceID
		pairing.DecidedAt = &now
		return tx.Save(&pairing).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return &pairing, revoked, nil
}

// RejectPairing moves a pending code of userID to rejected.
func (s *Store) RejectPairing(code, userID string) (*models.DevicePairing, error) {
	var pairing models.DevicePairing

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ? AND user_id = ?", code, userID).First(&pairing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrPairingNotFound
			}
			return err
		}
		if !pairing.IsPending() {
			return core.ErrPairingNotPending
		}
		now := time.Now()
		pairing.Status = string(core.PairingRejected)
		pairing.DecidedAt = &now
		return tx.Save(&pairing).Error
	})
	if err != nil {
		return nil, err
	}
	return &pairing, nil
}

// ExpireStalePairings flips pending codes past their window to expired.
func (s *Store) ExpireStalePairings() (int64, error) {
	res := s.db.Model(&models.DevicePairing{}).
		Where("status = ? AND expires_at < ?", string(core.PairingPending), time.Now()).
		Update("status", string(core.PairingExpired))
	return res.RowsAffected, res.Error
}

// CountPendingPairings counts codes still awaiting a decision.
func (s *Store) CountPendingPairings() (int64, error) {
	var count int64
	err := s.db.Model(&models.DevicePairing{}).
		Where("status = ? AND expires_at > ?", string(core.PairingPending), time.Now()).
		Count(&count).
		Error
	return count, err
}
