package models

import (
	"time"

	"github.com/go-authgate/memberguard/internal/core"
)

// Member account statuses.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusPending   = "pending"
)

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"` // Email is unique and required
	PasswordHash string // External users have empty password
	Role         string `gorm:"not null;default:'user'"` // "admin" or "user"
	FullName     string
	WhatsApp     string
	Tier         string `gorm:"not null;default:'Rookie'"`
	Balance      string `gorm:"not null;default:'0'"` // decimal string, never float
	ReferralCode string `gorm:"index"`
	Status       string `gorm:"not null;default:'active'"`

	// External authentication support
	ExternalID string `gorm:"index"`           // External user ID (e.g., from HTTP API)
	AuthSource string `gorm:"default:'local'"` // "local" or "http_api"

	SubscriptionExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// IsActive returns true if the member may use protected pages
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsExternal returns true if user authenticates via external provider
func (u *User) IsExternal() bool {
	return u.AuthSource != "local" && u.AuthSource != ""
}

// ToCore converts the row into the profile shape served to member clients.
func (u *User) ToCore() *core.Profile {
	return &core.Profile{
		ID:                    u.ID,
		Email:                 u.Email,
		FullName:              u.FullName,
		WhatsApp:              u.WhatsApp,
		Tier:                  u.Tier,
		Balance:               u.Balance,
		ReferralCode:          u.ReferralCode,
		Role:                  u.Role,
		Status:                u.Status,
		CreatedAt:             u.CreatedAt,
		SubscriptionExpiresAt: u.SubscriptionExpiresAt,
	}
}
