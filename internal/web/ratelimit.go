package web

import (
	"context"
	"sync"
	"time"
)

const (
	// MaxUploadRequestsPerMinute limits image uploads per session.
	MaxUploadRequestsPerMinute = 10

	// MaxProcessRequestsPerMinute limits processing requests per session.
	// Editing is interactive, so this is deliberately generous.
	MaxProcessRequestsPerMinute = 60

	// cleanupInterval is how often stale rate limit entries are removed.
	cleanupInterval = 5 * time.Minute

	// maxSessionAge is how long before an inactive session's limits are removed.
	maxSessionAge = 30 * time.Minute
)

// tokenBucket implements a simple token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	lastRefill time.Time
	lastAccess time.Time
	mu         sync.Mutex
}

// newTokenBucket creates a bucket with the given capacity, starting full.
func newTokenBucket(maxTokens float64) *tokenBucket {
	now := time.Now()
	return &tokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		lastRefill: now,
		lastAccess: now,
	}
}

// allow checks if a request is allowed and consumes a token if so.
// Tokens refill continuously at maxTokens per minute.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.lastAccess = now

	elapsed := now.Sub(tb.lastRefill).Minutes()
	tb.tokens += elapsed * tb.maxTokens
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// rateLimiter tracks per-session rate limits for the mutating endpoints.
type rateLimiter struct {
	mu      sync.Mutex
	upload  map[string]*tokenBucket
	process map[string]*tokenBucket
}

// newRateLimiter creates a rate limiter.
func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		upload:  make(map[string]*tokenBucket),
		process: make(map[string]*tokenBucket),
	}
}

// allowUpload checks if an upload request is allowed for the session.
func (rl *rateLimiter) allowUpload(sessionID string) bool {
	rl.mu.Lock()
	bucket, ok := rl.upload[sessionID]
	if !ok {
		bucket = newTokenBucket(MaxUploadRequestsPerMinute)
		rl.upload[sessionID] = bucket
	}
	rl.mu.Unlock()

	return bucket.allow()
}

// allowProcess checks if a processing request is allowed for the session.
func (rl *rateLimiter) allowProcess(sessionID string) bool {
	rl.mu.Lock()
	bucket, ok := rl.process[sessionID]
	if !ok {
		bucket = newTokenBucket(MaxProcessRequestsPerMinute)
		rl.process[sessionID] = bucket
	}
	rl.mu.Unlock()

	return bucket.allow()
}

// cleanup removes rate limit state for a session.
func (rl *rateLimiter) cleanup(sessionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.upload, sessionID)
	delete(rl.process, sessionID)
}

// cleanupStale removes rate limit state for sessions inactive longer
// than maxAge.
func (rl *rateLimiter) cleanupStale(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, bucket := range rl.upload {
		bucket.mu.Lock()
		stale := bucket.lastAccess.Before(cutoff)
		bucket.mu.Unlock()
		if stale {
			delete(rl.upload, id)
		}
	}
	for id, bucket := range rl.process {
		bucket.mu.Lock()
		stale := bucket.lastAccess.Before(cutoff)
		bucket.mu.Unlock()
		if stale {
			delete(rl.process, id)
		}
	}
}

// startCleanup runs periodic cleanup of stale entries until ctx is
// cancelled.
func (rl *rateLimiter) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanupStale(maxSessionAge)
			}
		}
	}()
}
