package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kaptam/internal/domain"

	"github.com/rs/zerolog"
)

const recheckAfter = time.Minute

// FailoverRateLimiter uses the primary limiter until it errors, then serves
// from the fallback and retries the primary once a minute.
type FailoverRateLimiter struct {
	primary  domain.RateLimiter
	fallback domain.RateLimiter
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverRateLimiter(primary, fallback domain.RateLimiter, logger *zerolog.Logger) *FailoverRateLimiter {
	return &FailoverRateLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverRateLimiter) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary rate limiter failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverRateLimiter) shouldRecheck() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recheckAfter
}

func (r *FailoverRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldRecheck() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("primary rate limiter recovered")
			}
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
