package enforcement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueueStore is an in-memory QueueStore for tests and local development
type MemoryQueueStore struct {
	mu          sync.Mutex
	items       []*QueueItem
	failEnqueue error
}

// NewMemoryQueueStore creates an empty in-memory queue store
func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{}
}

// FailEnqueues makes every subsequent enqueue return err. Test hook.
func (s *MemoryQueueStore) FailEnqueues(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEnqueue = err
}

// Items returns a snapshot of every queue item
func (s *MemoryQueueStore) Items() []QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueueItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

// Enqueue implements QueueStore
func (s *MemoryQueueStore) Enqueue(_ context.Context, userID uuid.UUID, action Action) (*QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEnqueue != nil {
		return nil, s.failEnqueue
	}
	item := &QueueItem{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now(),
	}
	s.items = append(s.items, item)
	cp := *item
	return &cp, nil
}

// FetchPending implements QueueStore
func (s *MemoryQueueStore) FetchPending(_ context.Context, limit int) ([]QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QueueItem
	for _, item := range s.items {
		if !item.Processed {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessed implements QueueStore
func (s *MemoryQueueStore) MarkProcessed(_ context.Context, id uuid.UUID, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			now := time.Now()
			item.Processed = true
			item.ProcessedAt = &now
			item.ErrorMessage = errorMessage
			return nil
		}
	}
	return nil
}

// CountPending implements QueueStore
func (s *MemoryQueueStore) CountPending(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if !item.Processed {
			count++
		}
	}
	return count, nil
}

// ListRecent implements QueueStore
func (s *MemoryQueueStore) ListRecent(_ context.Context, limit int) ([]QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueueItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
