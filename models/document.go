package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Risk is one flagged problematic clause.
type Risk struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"` // high|medium|low
}

// RiskList is stored as a jsonb column.
type RiskList []Risk

func (r RiskList) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *RiskList) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// StringList is stored as a jsonb column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// Document is one uploaded contract and its analysis outcome. Created
// on upload in pending status and mutated exactly once by the
// pipeline, to processed or failed.
type Document struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	OriginalName     string     `gorm:"size:255;not null" json:"original_name"`
	FilePath         string     `gorm:"type:text;not null" json:"-"`
	FileType         string     `gorm:"size:50" json:"file_type"`
	FileSize         int64      `json:"file_size"`
	Status           string     `gorm:"size:20;not null;default:'pending'" json:"status"`
	Score            *int       `json:"score"`
	Summary          string     `gorm:"type:text" json:"summary"`
	Risks            RiskList   `gorm:"type:jsonb" json:"risks"`
	Recommendations  StringList `gorm:"type:jsonb" json:"recommendations"`
	ImprovedFilePath string     `gorm:"type:text" json:"-"`
	HasImprovedFile  bool       `gorm:"-" json:"has_improved_file"`
	ProcessedAt      *time.Time `json:"processed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *Document) AfterFind(tx *gorm.DB) error {
	d.HasImprovedFile = d.ImprovedFilePath != ""
	return nil
}
