package assistants

import (
	"time"

	"github.com/google/uuid"
)

// Assistant represents a provisioned voice assistant and its enforcement
// state. OriginalMaxDurationSeconds is captured immediately before the first
// limiting mutation and must never be overwritten while IsUsageLimited is
// true.
type Assistant struct {
	ID                         uuid.UUID  `json:"id" db:"id"`
	UserID                     uuid.UUID  `json:"user_id" db:"user_id"`
	ExternalAssistantID        string     `json:"external_assistant_id" db:"external_assistant_id"`
	Name                       string     `json:"name" db:"name"`
	MaxDurationSeconds         int        `json:"max_duration_seconds" db:"max_duration_seconds"`
	OriginalMaxDurationSeconds *int       `json:"original_max_duration_seconds,omitempty" db:"original_max_duration_seconds"`
	IsUsageLimited             bool       `json:"is_usage_limited" db:"is_usage_limited"`
	UsageLimitedAt             *time.Time `json:"usage_limited_at,omitempty" db:"usage_limited_at"`
	CreatedAt                  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at" db:"updated_at"`
}
