package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/tmdb-discover/pkg/ratelimit"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Jitter is the randomization factor applied to each delay (0.2 = ±20%).
	// Keep it below (Multiplier-1)/(Multiplier+1) so delays stay strictly increasing.
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       10,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

// Validate checks the retry configuration.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("retry initial_backoff must be > 0 (got %s)", c.InitialBackoff)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1 (got %v)", c.BackoffMultiplier)
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("retry jitter must be in [0, 1) (got %v)", c.Jitter)
	}
	return nil
}

func (c RetryConfig) newBackOff(clk clock.Clock) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.Multiplier = c.BackoffMultiplier
	b.RandomizationFactor = c.Jitter
	b.MaxInterval = c.MaxBackoff
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Clock = clk
	b.Reset()
	return b
}

// retryWithBackoff executes fn, retrying only throttled failures with
// exponential backoff. Any other failure is returned immediately.
func retryWithBackoff(ctx context.Context, clk clock.Clock, config RetryConfig, logger zerolog.Logger, fn func() error) error {
	b := config.newBackOff(clk)

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass := Classify(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		delay := b.NextBackOff()
		retriesTotal.WithLabelValues(string(errorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(delay.Seconds())

		logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := ratelimit.Sleep(ctx, clk, delay); err != nil {
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}

	errorClass := Classify(lastErr)
	retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Warn().
		Str("error_class", string(errorClass)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
