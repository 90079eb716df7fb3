package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a sliding-window cap of limit events per window for a
// given key (§4.1 checks 1 and 7). Implementations fail open: a backend
// error never blocks an otherwise-legitimate request.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration)
}

// RedisLimiter implements Limiter with a Redis sorted set per key, scored
// by request timestamp, so multiple ingress instances share one window.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter wires a Limiter backed by an existing Redis connection.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration) {
	now := time.Now()
	windowStart := now.Add(-window)
	zkey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	count := pipe.ZCount(ctx, zkey, fmt.Sprintf("%d", windowStart.UnixNano()), "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0 // fail open
	}

	n, err := count.Result()
	if err != nil {
		return true, 0
	}
	if n >= int64(limit) {
		return false, window
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	l.client.ZAdd(ctx, zkey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	l.client.Expire(ctx, zkey, 2*window)
	return true, 0
}

// MemoryLimiter is the in-process fallback used when no Redis connection
// is configured (config.RedisConfig.Addr == ""). It is scoped to a single
// process, so it under-enforces a cap shared across ingress replicas —
// acceptable for the single-process deployment this falls back for.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryLimiter builds a process-local sliding-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	events := l.windows[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.windows[key] = kept
		return false, window
	}
	l.windows[key] = append(kept, now)
	return true, 0
}
