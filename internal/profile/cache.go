package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a short-lived Redis cache of positive profile-existence results.
//
// Only "exists" is ever stored: caching a negative would strand a user on the
// profile-creation page after they finish onboarding, while a stale positive
// merely skips one upstream round trip for a profile that cannot be deleted
// through this system.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache creates a profile cache over an existing Redis client
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Lookup returns (exists, found). A miss or any Redis error is a non-finding;
// the caller falls through to the upstream.
func (c *Cache) Lookup(ctx context.Context, token string) (bool, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(token)).Result()
	if err != nil {
		// A broken cache is indistinguishable from a miss
		return false, false
	}
	return val == "1", true
}

// MarkExists records a positive existence result with the configured TTL
func (c *Cache) MarkExists(ctx context.Context, token string) error {
	return c.rdb.Set(ctx, cacheKey(token), "1", c.ttl).Err()
}

// cacheKey derives the cache key from a digest of the token so the raw
// credential never lands in Redis
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "profile:exists:" + hex.EncodeToString(sum[:])
}
