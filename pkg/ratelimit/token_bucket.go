package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket paces calls evenly at Calls/Period with a burst of one, which
// keeps any rolling Period within the budget without tracking timestamps.
type TokenBucket struct {
	limiter *rate.Limiter
	config  Config
}

// NewTokenBucket creates a token bucket limiter.
func NewTokenBucket(cfg Config) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	every := cfg.Period / time.Duration(cfg.Calls)
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(every), 1),
		config:  cfg,
	}, nil
}

// Acquire implements Limiter.
func (t *TokenBucket) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	rateLimitAcquiredTotal.WithLabelValues(backendTokenBucket).Inc()
	if d := time.Since(start); d > time.Millisecond {
		rateLimitWaitsTotal.WithLabelValues(backendTokenBucket).Inc()
		rateLimitWaitSeconds.WithLabelValues(backendTokenBucket).Observe(d.Seconds())
	}
	return nil
}

// Budget implements Inspector. The bucket holds at most one token, so the
// snapshot only tells whether the next call can start immediately.
func (t *TokenBucket) Budget(_ context.Context) (Budget, error) {
	b := Budget{Limit: t.config.Calls, Period: t.config.Period, CallsInWindow: t.config.Calls}
	if t.limiter.Tokens() >= 1 {
		b.CallsInWindow = t.config.Calls - 1
	}
	return b, nil
}
