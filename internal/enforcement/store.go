package enforcement

import (
	"context"

	"github.com/google/uuid"
)

// QueueStore persists enforcement queue items
type QueueStore interface {
	Enqueue(ctx context.Context, userID uuid.UUID, action Action) (*QueueItem, error)
	// FetchPending returns up to limit unprocessed items, oldest first
	FetchPending(ctx context.Context, limit int) ([]QueueItem, error)
	// MarkProcessed flips processed=true and records the aggregated error
	// message, if any
	MarkProcessed(ctx context.Context, id uuid.UUID, errorMessage *string) error
	CountPending(ctx context.Context) (int, error)
	// ListRecent returns the newest items regardless of state, for the
	// dashboard's queue view
	ListRecent(ctx context.Context, limit int) ([]QueueItem, error)
}
