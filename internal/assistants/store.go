package assistants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an assistant lookup misses
var ErrNotFound = errors.New("assistant not found")

// Store persists assistants and their enforcement state
type Store interface {
	GetByExternalID(ctx context.Context, externalID string) (*Assistant, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Assistant, error)
	// MarkLimited captures the pre-mutation duration and flips the limited
	// flag. It must not touch original_max_duration_seconds when the
	// assistant is already limited.
	MarkLimited(ctx context.Context, id uuid.UUID, originalDuration, graceDuration int, at time.Time) error
	// MarkRestored resets the duration to the captured original and clears
	// the limited state.
	MarkRestored(ctx context.Context, id uuid.UUID, restoredDuration int) error
}
