package gateway

import (
	"sync"
	"time"
)

// RateLimiter applies a per-caller token bucket. Callers are identified by
// the opaque login identifier, falling back to the remote address for
// anonymous traffic.
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	period     time.Duration
}

// tokenBucket holds the remaining allowance for one caller
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a rate limiter allowing limit requests per period
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		period:  period,
	}
}

// Allow reports whether one more request from the caller fits the budget
func (rl *RateLimiter) Allow(caller string) bool {
	bucket := rl.getBucket(caller)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	// Continuous refill proportional to elapsed time
	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)
	refill := float64(rl.limit) * elapsed.Seconds() / rl.period.Seconds()
	bucket.tokens = minFloat(bucket.tokens+refill, float64(rl.limit))
	bucket.lastRefill = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// getBucket gets or creates the bucket for a caller
func (rl *RateLimiter) getBucket(caller string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[caller]
	rl.bucketsMux.RUnlock()

	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	// Double-check after acquiring the write lock
	if bucket, exists := rl.buckets[caller]; exists {
		return bucket
	}

	bucket = &tokenBucket{
		tokens:     float64(rl.limit),
		lastRefill: time.Now(),
	}
	rl.buckets[caller] = bucket

	return bucket
}

// cleanup drops buckets idle for more than a day
func (rl *RateLimiter) cleanup() {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)

	for caller, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, caller)
		}
		bucket.mutex.Unlock()
	}
}

// StartCleanup starts periodic cleanup of idle buckets
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			rl.cleanup()
		}
	}()
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
