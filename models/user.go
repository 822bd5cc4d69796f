package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TierFree     = "free"
	TierPro      = "pro"
	TierBusiness = "business"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:150" json:"email"`
	Password  string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Profile   Profile    `gorm:"constraint:OnDelete:CASCADE;" json:"profile"`
	Documents []Document `json:"-"`
}

// Profile carries the quota counters for one user. It is created in
// the same transaction as the User row.
type Profile struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`
	SubscriptionTier string    `gorm:"size:20;not null;default:'free'" json:"subscription_tier"`
	ChecksRemaining  int       `gorm:"not null;default:3" json:"checks_remaining"`
	TotalChecksCount int       `gorm:"not null;default:0" json:"total_checks_count"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TierForChecks maps a purchased checks amount to a subscription tier.
func TierForChecks(checks int) string {
	switch {
	case checks >= 100:
		return TierBusiness
	case checks >= 20:
		return TierPro
	default:
		return TierFree
	}
}
