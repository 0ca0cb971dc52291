package models

import (
	"time"

	"github.com/go-authgate/memberguard/internal/core"
)

// DevicePairing is a short-lived code a new device shows so that a trusted
// device of the same account can approve it.
type DevicePairing struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Code             string `gorm:"uniqueIndex;not null"`
	UserID           string `gorm:"not null;index"`
	DeviceID         string `gorm:"not null;index"`
	Label            string
	UserAgent        string
	Status           string `gorm:"not null;default:'pending';index"`
	ExpiresAt        time.Time
	ApprovedByDevice string
	DecidedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *DevicePairing) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}

// IsPending returns true while the code still awaits a decision
func (p *DevicePairing) IsPending() bool {
	return p.Status == string(core.PairingPending)
}

// IsActive returns true if the code is pending and inside its window
func (p *DevicePairing) IsActive() bool {
	return p.IsPending() && !p.IsExpired()
}

func (p *DevicePairing) ToCore() *core.PairingRequest {
	return &core.PairingRequest{
		Code:      p.Code,
		DeviceID:  p.DeviceID,
		Label:     p.Label,
		UserAgent: p.UserAgent,
		Status:    core.PairingStatus(p.Status),
		ExpiresAt: p.ExpiresAt,
		CreatedAt: p.CreatedAt,
	}
}
