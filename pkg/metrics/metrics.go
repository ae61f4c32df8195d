// Package metrics exposes the Prometheus registry used by the discover
// packages. All metrics are defined in their respective packages (client,
// ratelimit, pagination, discover) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the discover packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - discover_rate_limit_acquired_total{backend} (Counter): Call slots granted
//   - discover_rate_limit_waits_total{backend} (Counter): Calls that had to wait for the budget
//   - discover_rate_limit_wait_seconds{backend} (Histogram): Time spent waiting for a slot
//   - discover_rate_limit_calls_in_window{backend} (Gauge): Calls inside the current window
//
// Request Metrics (pkg/client):
//   - discover_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - discover_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - discover_errors_total{class} (Counter): Errors by class (throttled, unrecoverable, network)
//
// Retry Metrics (pkg/client):
//   - discover_retries_total{error_class} (Counter): Retry attempts by error class
//   - discover_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - discover_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Pagination Metrics (pkg/pagination):
//   - discover_pages_fetched_total (Counter): Pages fetched successfully
//   - discover_walks_aborted_total (Counter): Walks aborted by an unrecoverable response
//
// Discover Metrics (pkg/discover):
//   - discover_years_total{outcome} (Counter): Years by outcome (complete, partial, failed)
//   - discover_records_total (Counter): Records normalized
//
// Example Prometheus Queries:
//
//   # Throttling Rate
//   rate(discover_retries_total{error_class="throttled"}[5m])
//
//   # Partial Years
//   increase(discover_years_total{outcome="partial"}[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(discover_request_duration_seconds_bucket[5m]))
//
//   # Time Blocked On The Budget
//   rate(discover_rate_limit_wait_seconds_sum[5m])
