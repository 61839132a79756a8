package repository

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 1024

// MemoryRateLimiter keeps one token bucket per key in process memory.
// A bucket refills limit tokens per window and holds at most limit.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*memoryEntry
	calls    int
	now      func() time.Time
}

type memoryEntry struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limiters: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

func (r *MemoryRateLimiter) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.limiters[key]
	if !ok || entry.limit != limit || entry.window != window {
		entry = &memoryEntry{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:   limit,
			window:  window,
		}
		r.limiters[key] = entry
	}
	entry.lastSeen = now

	r.calls++
	if r.calls%sweepEvery == 0 {
		r.sweep(now)
	}

	return entry.limiter.AllowN(now, 1), nil
}

// sweep drops buckets idle for longer than their window; they would be full again anyway.
func (r *MemoryRateLimiter) sweep(now time.Time) {
	for key, entry := range r.limiters {
		if now.Sub(entry.lastSeen) > entry.window {
			delete(r.limiters, key)
		}
	}
}

// Len reports the number of tracked keys.
func (r *MemoryRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
