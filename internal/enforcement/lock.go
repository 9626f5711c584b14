package enforcement

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/orialabs/voicedeck/internal/cache"
)

// Lock guards the queue processor against overlapping runs. The in-memory
// implementation is sufficient for a single service instance; deployments
// running multiple processor instances need the Redis-backed lock so the
// guard holds across processes.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// MemoryLock is a process-local non-reentrant flag
type MemoryLock struct {
	held atomic.Bool
}

// NewMemoryLock creates an in-process lock
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{}
}

// TryAcquire implements Lock
func (l *MemoryLock) TryAcquire(_ context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

// Release implements Lock
func (l *MemoryLock) Release(_ context.Context) error {
	l.held.Store(false)
	return nil
}

// RedisLock is a best-effort cross-instance lock built on SET NX with a TTL.
// The TTL bounds how long a crashed holder can block other instances.
type RedisLock struct {
	redis *cache.Redis
	key   string
	ttl   time.Duration
}

// NewRedisLock creates a Redis-backed processor lock
func NewRedisLock(r *cache.Redis, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLock{redis: r, key: key, ttl: ttl}
}

// TryAcquire implements Lock
func (l *RedisLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.redis.Client.SetNX(ctx, l.key, "1", l.ttl).Result()
}

// Release implements Lock
func (l *RedisLock) Release(ctx context.Context) error {
	return l.redis.Client.Del(ctx, l.key).Err()
}
