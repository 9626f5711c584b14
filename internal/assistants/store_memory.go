package assistants

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development
type MemoryStore struct {
	mu         sync.RWMutex
	assistants map[uuid.UUID]*Assistant
}

// NewMemoryStore creates an empty in-memory assistant store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assistants: make(map[uuid.UUID]*Assistant)}
}

// Put inserts or replaces an assistant
func (s *MemoryStore) Put(a *Assistant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.assistants[a.ID] = &cp
}

// Get returns a copy of the assistant by id
func (s *MemoryStore) Get(id uuid.UUID) (*Assistant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assistants[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// GetByExternalID implements Store
func (s *MemoryStore) GetByExternalID(_ context.Context, externalID string) (*Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assistants {
		if a.ExternalAssistantID == externalID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListByUser implements Store
func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Assistant
	for _, a := range s.assistants {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// MarkLimited implements Store
func (s *MemoryStore) MarkLimited(_ context.Context, id uuid.UUID, originalDuration, graceDuration int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assistants[id]
	if !ok || a.IsUsageLimited {
		return ErrNotFound
	}
	orig := originalDuration
	a.OriginalMaxDurationSeconds = &orig
	a.MaxDurationSeconds = graceDuration
	a.IsUsageLimited = true
	limitedAt := at
	a.UsageLimitedAt = &limitedAt
	a.UpdatedAt = time.Now()
	return nil
}

// MarkRestored implements Store
func (s *MemoryStore) MarkRestored(_ context.Context, id uuid.UUID, restoredDuration int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assistants[id]
	if !ok || !a.IsUsageLimited {
		return ErrNotFound
	}
	a.MaxDurationSeconds = restoredDuration
	a.OriginalMaxDurationSeconds = nil
	a.IsUsageLimited = false
	a.UsageLimitedAt = nil
	a.UpdatedAt = time.Now()
	return nil
}
