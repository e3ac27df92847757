package datasvc

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache keeps raw data service responses between fetches.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type memoryEntry struct {
	expires time.Time
	value   []byte
}

// MemoryCache is a process local Cache with a fixed TTL.
type MemoryCache struct {
	entries map[string]memoryEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.Mutex
}

// NewMemoryCache returns an empty MemoryCache. A ttl of zero keeps entries
// until the process exits.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		ttl:     ttl,
	}
}

// Get returns a live entry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}

	return e.value, true
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// RedisCache stores responses in Redis under a key prefix.
type RedisCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis connects to addr. It returns nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisCache wraps rc.
func NewRedisCache(rc *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{rc: rc, prefix: prefix, ttl: ttl}
}

// Get returns the cached value. Redis errors count as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rc.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Redis cache read failed")
		}
		return nil, false
	}
	return b, true
}

// Set stores value with the cache TTL. Write errors are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.rc.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis cache write failed")
	}
}
