package models

import (
	"encoding/json"
	"time"
)

// Setting is one runtime-tunable value, keyed by name and stored as JSON.
type Setting struct {
	Key       string          `gorm:"type:varchar(64);primaryKey" json:"key"` // Setting name.
	Value     json.RawMessage `gorm:"type:json" json:"value"`                 // JSON-encoded value.
	UpdatedBy *uint64         `json:"updated_by"`                             // Admin who last wrote the value; nil when seeded.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
