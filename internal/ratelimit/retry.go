package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forexBot/internal/ports"

	"github.com/jpillora/backoff"
)

// RetryPolicy bounds how a rate-limited request is retried.
type RetryPolicy struct {
	Backoff     time.Duration // First wait after a rate-limited response
	MaxAttempts int           // Rate-limited responses tolerated before giving up
}

func (p RetryPolicy) newBackoff() *backoff.Backoff {
	min := p.Backoff
	if min <= 0 {
		min = time.Millisecond
	}
	return &backoff.Backoff{
		Min:    min,
		Max:    8 * min,
		Factor: 2,
	}
}

// Do runs fn after acquiring limiter. When fn fails with ports.ErrRateLimited
// the whole call (including the limiter wait) is repeated after an exponential
// backoff. After MaxAttempts rate-limited responses it gives up with an error
// wrapping both ports.ErrNetwork and ports.ErrRateLimited.
func Do(ctx context.Context, limiter ports.RateLimiter, policy RetryPolicy, logger ports.Logger, op string, fn func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	b := policy.newBackoff()

	for {
		if limiter != nil {
			if err := limiter.Acquire(ctx); err != nil {
				return fmt.Errorf("%s: %w: %w", op, ports.ErrNetwork, err)
			}
		}

		err := fn(ctx)
		if err == nil || !errors.Is(err, ports.ErrRateLimited) {
			return err
		}

		attempt := int(b.Attempt()) + 1
		if attempt >= maxAttempts {
			return fmt.Errorf("%s: gave up after %d rate-limited attempts: %w: %w", op, attempt, ports.ErrNetwork, err)
		}

		wait := b.Duration()
		if logger != nil {
			logger.Warn(ctx, op+": rate limited by provider, backing off", map[string]interface{}{
				"attempt": attempt,
				"wait":    wait.String(),
			})
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w: %w", op, ports.ErrNetwork, ctx.Err())
		case <-timer.C:
		}
	}
}
