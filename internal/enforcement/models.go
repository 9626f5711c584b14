package enforcement

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of work a queue item represents
type Action string

const (
	ActionEnforce Action = "enforce"
	ActionRestore Action = "restore"
)

// QueueItem is a durable, at-least-once work unit: one enforce/restore
// decision for one user. Items are marked processed whether they fully
// succeeded or partially failed; per-assistant failures are aggregated into
// ErrorMessage instead of being silently retried.
type QueueItem struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	Action       Action     `json:"action" db:"action"`
	Processed    bool       `json:"processed" db:"processed"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
