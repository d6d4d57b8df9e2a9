// Package ratelimit holds the process-wide throttle shared by every
// market-data request.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"forexBot/internal/ports"

	"golang.org/x/time/rate"
)

// Limiter admits one request per interval across all callers.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

var _ ports.RateLimiter = (*Limiter)(nil)

// New creates a Limiter spacing requests at least interval apart.
// A non-positive interval disables throttling.
func New(interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Acquire blocks until the next slot opens. The first call returns immediately.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// Interval returns the configured spacing between requests.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
