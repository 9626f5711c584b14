package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUserStore is an in-memory UserStore for tests and local development
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*UserUsageState
}

// NewMemoryUserStore creates an empty in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[uuid.UUID]*UserUsageState)}
}

// Put inserts or replaces a user's usage state
func (s *MemoryUserStore) Put(st *UserUsageState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.users[st.UserID] = &cp
}

// GetUsageState implements UserStore
func (s *MemoryUserStore) GetUsageState(_ context.Context, userID uuid.UUID) (*UserUsageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *st
	return &cp, nil
}

// MarkLimitEnforced implements UserStore
func (s *MemoryUserStore) MarkLimitEnforced(_ context.Context, userID uuid.UUID, at, cycleStart time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	if st.LimitEnforcedAt != nil && !st.LimitEnforcedAt.Before(cycleStart) {
		return false, nil
	}
	stamped := at
	st.LimitEnforcedAt = &stamped
	return true, nil
}

// ClearLimitEnforced implements UserStore
func (s *MemoryUserStore) ClearLimitEnforced(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	st.LimitEnforcedAt = nil
	return nil
}

// ListLimitEnforced implements UserStore
func (s *MemoryUserStore) ListLimitEnforced(_ context.Context) ([]UserUsageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserUsageState
	for _, st := range s.users {
		if st.LimitEnforcedAt != nil {
			out = append(out, *st)
		}
	}
	return out, nil
}
