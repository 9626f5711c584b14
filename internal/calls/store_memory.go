package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]*CallRecord // keyed by external call id
	leads      map[uuid.UUID]*Lead    // keyed by call record id
	failUpsert error
}

// NewMemoryStore creates an empty in-memory call record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*CallRecord),
		leads:   make(map[uuid.UUID]*Lead),
	}
}

// FailUpserts makes every subsequent upsert return err. Test hook.
func (s *MemoryStore) FailUpserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpsert = err
}

// Len returns the number of stored call records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// LeadFor returns the lead extracted for a call record, if any
func (s *MemoryStore) LeadFor(callRecordID uuid.UUID) (*Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[callRecordID]
	if !ok {
		return nil, false
	}
	cp := *l
	return &cp, true
}

// UpsertCallRecord implements Store
func (s *MemoryStore) UpsertCallRecord(_ context.Context, rec *CallRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert != nil {
		return false, s.failUpsert
	}

	now := time.Now()
	existing, ok := s.records[rec.ExternalCallID]
	if ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = now
		cp := *rec
		s.records[rec.ExternalCallID] = &cp
		return false, nil
	}

	rec.ID = uuid.New()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	s.records[rec.ExternalCallID] = &cp
	return true, nil
}

// GetByExternalID implements Store
func (s *MemoryStore) GetByExternalID(_ context.Context, externalCallID string) (*CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[externalCallID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListByUser implements Store
func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CallRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].StartedAt, out[j].StartedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SumDurationSince implements Store
func (s *MemoryStore) SumDurationSince(_ context.Context, userID uuid.UUID, since time.Time) (int64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	var count int
	for _, rec := range s.records {
		if rec.UserID != userID || rec.StartedAt == nil {
			continue
		}
		if rec.StartedAt.Before(since) {
			continue
		}
		total += int64(rec.DurationSeconds)
		count++
	}
	return total, count, nil
}

// InsertLead implements Store
func (s *MemoryStore) InsertLead(_ context.Context, lead *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.leads[lead.CallRecordID]; ok {
		lead.ID = existing.ID
		lead.CreatedAt = existing.CreatedAt
	} else {
		lead.ID = uuid.New()
		lead.CreatedAt = time.Now()
	}
	cp := *lead
	s.leads[lead.CallRecordID] = &cp
	return nil
}
