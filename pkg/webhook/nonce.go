package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceCache answers whether a request fingerprint has already been seen
// within its freshness window (§4.1 check 4). SeenOrRecord atomically
// checks-and-records: a true return means the key was already present.
type NonceCache interface {
	SeenOrRecord(ctx context.Context, key string, ttl time.Duration) bool
}

// RedisNonceCache uses SET NX with a TTL, so the replay window is shared
// across ingress instances and entries expire without a sweep.
type RedisNonceCache struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceCache(client *redis.Client, prefix string) *RedisNonceCache {
	return &RedisNonceCache{client: client, prefix: prefix}
}

func (c *RedisNonceCache) SeenOrRecord(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := c.client.SetNX(ctx, c.prefix+":"+key, 1, ttl).Result()
	if err != nil {
		return false // fail open: a cache outage must not block ingress
	}
	return !ok
}

// MemoryNonceCache is the in-process fallback, matching MemoryLimiter's
// single-process scope.
type MemoryNonceCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryNonceCache() *MemoryNonceCache {
	return &MemoryNonceCache{entries: make(map[string]time.Time)}
}

func (c *MemoryNonceCache) SeenOrRecord(ctx context.Context, key string, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if len(c.entries)%256 == 0 {
		for k, exp := range c.entries {
			if now.After(exp) {
				delete(c.entries, k)
			}
		}
	}

	if exp, ok := c.entries[key]; ok && now.Before(exp) {
		return true
	}
	c.entries[key] = now.Add(ttl)
	return false
}
