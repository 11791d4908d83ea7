package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("login-1"), "request %d should be allowed", i)
	}
	assert.False(t, limiter.Allow("login-1"))
}

func TestRateLimiterIsolatesCallers(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("login-1"))
	assert.False(t, limiter.Allow("login-1"))

	// A different caller has its own bucket
	assert.True(t, limiter.Allow("login-2"))
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	limiter := NewRateLimiter(10, 100*time.Millisecond)

	for i := 0; i < 10; i++ {
		limiter.Allow("login-1")
	}
	assert.False(t, limiter.Allow("login-1"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, limiter.Allow("login-1"), "partial refill should restore allowance")
}

func TestRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	limiter.Allow("login-1")

	limiter.bucketsMux.Lock()
	limiter.buckets["login-1"].lastRefill = time.Now().Add(-25 * time.Hour)
	limiter.bucketsMux.Unlock()

	limiter.cleanup()

	limiter.bucketsMux.RLock()
	_, exists := limiter.buckets["login-1"]
	limiter.bucketsMux.RUnlock()
	assert.False(t, exists)
}
