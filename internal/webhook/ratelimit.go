package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orialabs/voicedeck/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CounterStore tracks request timestamps per key inside a sliding window.
// The in-memory implementation suits single-instance deployments; the Redis
// implementation shares state across instances.
type CounterStore interface {
	// Count removes entries older than the window, records the new request,
	// and returns the number of requests inside the window before this one.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
}

// RateLimiter implements sliding window rate limiting over a CounterStore
type RateLimiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// NewRateLimiter creates a rate limiter with the given per-window limit
func NewRateLimiter(store CounterStore, limit, windowSeconds int) *RateLimiter {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: time.Duration(windowSeconds) * time.Second,
	}
}

// Allow reports whether a request for the key is within the limit.
// On store errors the request is allowed (fail open): rate limiting here is
// coarse abuse mitigation, not an integrity control.
func (r *RateLimiter) Allow(ctx context.Context, key string) bool {
	count, err := r.store.Count(ctx, key, time.Now(), r.window)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limit check failed, allowing request")
		return true
	}
	return count < int64(r.limit)
}

// MemoryCounterStore is a process-local sliding window counter with periodic
// cleanup of idle keys.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryCounterStore creates an in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{entries: make(map[string][]time.Time)}
}

// Count implements CounterStore
func (s *MemoryCounterStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.entries[key][:0]
	for _, t := range s.entries[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	count := int64(len(kept))
	s.entries[key] = append(kept, now)
	return count, nil
}

// StartCleanup evicts idle keys on an interval until ctx is cancelled
func (s *MemoryCounterStore) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.evict(now.Add(-maxAge))
			}
		}
	}()
}

func (s *MemoryCounterStore) evict(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, times := range s.entries {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(s.entries, key)
		}
	}
}

// RedisCounterStore keeps the sliding window in a Redis sorted set so the
// limit holds across service instances.
type RedisCounterStore struct {
	redis *cache.Redis
}

// NewRedisCounterStore creates a Redis-backed counter store
func NewRedisCounterStore(r *cache.Redis) *RedisCounterStore {
	return &RedisCounterStore{redis: r}
}

// Count implements CounterStore using a sorted set keyed by request time
func (s *RedisCounterStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	redisKey := fmt.Sprintf("ratelimit:webhook:%s", key)
	windowStart := now.Add(-window)

	pipe := s.redis.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to update rate limit window: %w", err)
	}
	return countCmd.Val(), nil
}
