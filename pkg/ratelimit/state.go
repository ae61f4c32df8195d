// Package ratelimit enforces the client-side call budget of the catalog API.
// The API allows at most Calls requests in any rolling Period and answers
// 429 beyond that; every limiter in this package blocks instead of dropping.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
)

// Defaults matching the catalog API contract.
const (
	DefaultCalls  = 50
	DefaultPeriod = 5 * time.Second
)

// Limiter gates outbound calls.
type Limiter interface {
	// Acquire blocks until a call slot is available and records the call.
	// It only fails when ctx is cancelled.
	Acquire(ctx context.Context) error
}

// Inspector exposes the current budget of a limiter.
type Inspector interface {
	Budget(ctx context.Context) (Budget, error)
}

// Config is an N-calls-per-T budget.
type Config struct {
	Calls  int
	Period time.Duration
}

// DefaultConfig returns the 50 calls per 5 seconds budget.
func DefaultConfig() Config {
	return Config{Calls: DefaultCalls, Period: DefaultPeriod}
}

// Validate checks the budget is usable.
func (c Config) Validate() error {
	if c.Calls <= 0 {
		return fmt.Errorf("rate limit calls must be > 0 (got %d)", c.Calls)
	}
	if c.Period <= 0 {
		return fmt.Errorf("rate limit period must be > 0 (got %s)", c.Period)
	}
	return nil
}

// Budget is a snapshot of the calls issued inside the current window.
type Budget struct {
	// CallsInWindow is the number of calls made in the last Period.
	CallsInWindow int `json:"calls_in_window"`

	// WindowStart is the start time of the oldest call still in the window.
	// Zero when the window is empty.
	WindowStart time.Time `json:"window_start"`

	Limit  int           `json:"limit"`
	Period time.Duration `json:"period"`
}

// Remaining returns how many calls can start right now without waiting.
func (b Budget) Remaining() int {
	if r := b.Limit - b.CallsInWindow; r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether the next call has to wait.
func (b Budget) Exhausted() bool {
	return b.Remaining() == 0
}

// Sleep waits d on clk. A context that can never be cancelled sleeps on the
// clock directly so fake clocks advance without a second goroutine.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if ctx.Done() == nil {
		clk.Sleep(d)
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
