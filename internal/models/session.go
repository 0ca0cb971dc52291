package models

import (
	"time"
)

// Session is one signed-in identity session. Its ID is the token's jti.
type Session struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	DeviceID  string `gorm:"index"`
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	Revoked   bool `gorm:"not null;default:false;index"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsActive returns true if the session is neither revoked nor expired
func (s *Session) IsActive() bool {
	return !s.Revoked && !s.IsExpired()
}
