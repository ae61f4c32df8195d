package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitAcquiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_rate_limit_acquired_total",
		Help: "Total number of call slots granted by backend",
	}, []string{"backend"})

	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_rate_limit_waits_total",
		Help: "Total number of times a call had to wait for the budget by backend",
	}, []string{"backend"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discover_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a call slot by backend",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"backend"})

	rateLimitCallsInWindow = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "discover_rate_limit_calls_in_window",
		Help: "Calls issued inside the current window by backend",
	}, []string{"backend"})
)

const (
	backendSliding     = "sliding"
	backendTokenBucket = "token_bucket"
	backendRedis       = "redis"
)
