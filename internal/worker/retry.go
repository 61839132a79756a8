package worker

import "time"

// ceilingDelay bounds the backoff when no MaxDelay is configured.
const ceilingDelay = time.Hour

// RetryPolicy spaces out attempts to reach the spreadsheet after a failed
// sync. A task that fails MaxRetries times is dead-lettered.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	return r
}

// Exhausted reports whether a task that has now failed attempt times is done retrying.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return r.MaxRetries > 0 && attempt >= r.MaxRetries
}

// NextDelay returns the wait before the given 1-based attempt. Each attempt
// multiplies the previous wait by BackoffFactor up to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	d := r.InitialDelay
	if d <= 0 {
		d = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	limit := r.MaxDelay
	if limit <= 0 {
		limit = ceilingDelay
	}

	for i := 1; i < attempt && d < limit; i++ {
		d = time.Duration(float64(d) * factor)
	}
	if d > limit {
		d = limit
	}
	return d
}
