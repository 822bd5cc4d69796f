package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
)

// Transaction records one payment attempt. The integer primary key
// doubles as the gateway invoice id (InvId). The pending -> completed
// transition happens at most once; webhook retries on a completed
// transaction are a no-op.
type Transaction struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	PlanID          string     `gorm:"size:20;not null" json:"plan_id"`
	Amount          int        `gorm:"not null" json:"amount"`
	ChecksPurchased int        `gorm:"not null" json:"checks_purchased"`
	Status          string     `gorm:"size:20;not null;default:'pending'" json:"status"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
