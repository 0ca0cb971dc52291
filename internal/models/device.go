package models

import (
	"time"

	"github.com/go-authgate/memberguard/internal/core"
)

// Device is one (user, device) binding. A row is never deleted; revocation
// flips Revoked so the same device id can be re-paired later.
type Device struct {
	ID         string `gorm:"primaryKey"`
	DeviceID   string `gorm:"not null;uniqueIndex:idx_devices_user_device"`
	UserID     string `gorm:"not null;uniqueIndex:idx_devices_user_device;index"`
	Label      string
	UserAgent  string
	IPAddress  string
	Revoked    bool `gorm:"not null;default:false;index"`
	RevokedAt  *time.Time
	LastSeenAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive returns true if the binding still counts against the device cap
func (d *Device) IsActive() bool {
	return !d.Revoked
}

func (d *Device) ToCore() *core.DeviceBinding {
	return &core.DeviceBinding{
		ID:        d.ID,
		DeviceID:  d.DeviceID,
		UserID:    d.UserID,
		Label:     d.Label,
		UserAgent: d.UserAgent,
		Revoked:   d.Revoked,
		CreatedAt: d.CreatedAt,
	}
}
