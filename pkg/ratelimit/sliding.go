package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"
)

// SlidingWindow is an in-process limiter that keeps the start time of every
// call made within the last Period. A call is admitted only while fewer than
// Calls timestamps remain in the window, so no rolling interval of length
// Period ever contains more than Calls starts.
type SlidingWindow struct {
	mu     sync.Mutex
	config Config
	clock  clock.Clock
	calls  []time.Time // oldest first
	logger zerolog.Logger
}

// NewSlidingWindow creates a sliding window limiter. A nil clk uses the wall clock.
func NewSlidingWindow(cfg Config, clk clock.Clock, logger zerolog.Logger) (*SlidingWindow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SlidingWindow{
		config: cfg,
		clock:  clk,
		calls:  make([]time.Time, 0, cfg.Calls),
		logger: logger,
	}, nil
}

// Acquire implements Limiter.
func (s *SlidingWindow) Acquire(ctx context.Context) error {
	started := s.clock.Now()
	waited := false

	for {
		s.mu.Lock()
		now := s.clock.Now()
		s.evict(now)
		if len(s.calls) < s.config.Calls {
			s.calls = append(s.calls, now)
			inWindow := len(s.calls)
			s.mu.Unlock()

			rateLimitAcquiredTotal.WithLabelValues(backendSliding).Inc()
			rateLimitCallsInWindow.WithLabelValues(backendSliding).Set(float64(inWindow))
			if waited {
				rateLimitWaitSeconds.WithLabelValues(backendSliding).Observe(now.Sub(started).Seconds())
			}
			return nil
		}
		wait := s.calls[0].Add(s.config.Period).Sub(now)
		s.mu.Unlock()

		if !waited {
			rateLimitWaitsTotal.WithLabelValues(backendSliding).Inc()
			waited = true
		}
		s.logger.Debug().
			Int("calls_in_window", s.config.Calls).
			Dur("wait", wait).
			Msg("Rate budget exhausted, waiting")

		if err := Sleep(ctx, s.clock, wait); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
}

// Budget implements Inspector.
func (s *SlidingWindow) Budget(_ context.Context) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(s.clock.Now())
	b := Budget{
		CallsInWindow: len(s.calls),
		Limit:         s.config.Calls,
		Period:        s.config.Period,
	}
	if len(s.calls) > 0 {
		b.WindowStart = s.calls[0]
	}
	return b, nil
}

// evict drops calls that started at least one Period before now.
func (s *SlidingWindow) evict(now time.Time) {
	i := 0
	for i < len(s.calls) && !now.Before(s.calls[i].Add(s.config.Period)) {
		i++
	}
	if i > 0 {
		s.calls = append(s.calls[:0], s.calls[i:]...)
	}
}
