package agent

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"courier-dialer/pkg/utils"
)

// LineLimiter caps how many outbound calls are in flight at once.
type LineLimiter interface {
	// Acquire takes a line, reporting false when all lines are busy.
	Acquire(ctx context.Context) (bool, error)
	// Release frees a previously acquired line.
	Release(ctx context.Context) error
}

// MemoryLimiter is the in-process line limiter used when Redis is not
// configured. It only caps calls from this process.
type MemoryLimiter struct {
	mu    sync.Mutex
	used  int
	limit int
}

func NewMemoryLimiter(limit int) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &MemoryLimiter{limit: limit}
}

func (l *MemoryLimiter) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used >= l.limit {
		return false, nil
	}
	l.used++
	return true, nil
}

func (l *MemoryLimiter) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used > 0 {
		l.used--
	}
	return nil
}

// RedisLimiter enforces the call line cap across all instances through a
// shared Redis counter. The TTL bounds leaked lines after a crash.
type RedisLimiter struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, key string, limit int, ttl time.Duration) *RedisLimiter {
	if key == "" {
		key = "dialer:lines"
	}
	if limit <= 0 {
		limit = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLimiter{rdb: rdb, key: key, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireCallLine(ctx, l.rdb, l.key, l.limit, l.ttl)
}

func (l *RedisLimiter) Release(ctx context.Context) error {
	return utils.ReleaseCallLine(ctx, l.rdb, l.key)
}
