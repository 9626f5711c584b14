package calls

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a call record lookup misses
var ErrNotFound = errors.New("call record not found")

// Store persists call records and leads
type Store interface {
	// UpsertCallRecord inserts the record or, when one already exists for
	// the same external call id, updates it in place. Returns true when a
	// new row was created.
	UpsertCallRecord(ctx context.Context, rec *CallRecord) (bool, error)
	GetByExternalID(ctx context.Context, externalCallID string) (*CallRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]CallRecord, error)
	// SumDurationSince returns the total duration in seconds and the call
	// count for a user's calls started at or after the given instant.
	SumDurationSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, int, error)
	InsertLead(ctx context.Context, lead *Lead) error
}
