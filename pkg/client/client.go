// Package client provides the catalog HTTP client with rate limiting,
// retry on throttling, and response classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/tmdb-discover/pkg/ratelimit"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 16 << 20

// Prometheus metrics for catalog client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discover_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discover_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Client is the catalog API client.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	clock      clock.Clock
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API, e.g. "https://api.themoviedb.org".
	BaseURL string

	// APIKey is sent as a bearer credential (REQUIRED).
	APIKey string

	// Limiter gates every attempt, retries included (REQUIRED).
	Limiter ratelimit.Limiter

	// Clock drives retry delays. Nil uses the wall clock.
	Clock clock.Clock

	// Timeout per HTTP attempt.
	Timeout time.Duration

	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string, limiter ratelimit.Limiter) Config {
	return Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Limiter: limiter,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: cfg.Limiter,
		clock:   cfg.Clock,
		config:  cfg,
		logger:  log.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// GetJSON performs a GET on path with query and decodes a 200 body into out.
// 429 responses are retried with backoff; other non-200 responses return an
// unrecoverable *APIError; exhausted retries wrap ErrRetryExhausted.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	var body []byte
	err := retryWithBackoff(ctx, c.clock, c.config.Retry, c.logger.With().Str("endpoint", path).Logger(), func() error {
		var callErr error
		body, callErr = c.get(ctx, path, query)
		return callErr
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// get issues one attempt and classifies the response.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire rate budget: %w", err)
	}

	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", path).
		Str("page", query.Get("page")).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, &APIError{Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Err: fmt.Errorf("read response body: %w", err)}
	}

	requestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusTooManyRequests:
		errorsTotal.WithLabelValues(string(ErrorClassThrottled)).Inc()
		c.logger.Debug().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Msg("Catalog request throttled")
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassThrottled, Body: string(body)}
	default:
		errorsTotal.WithLabelValues(string(ErrorClassUnrecoverable)).Inc()
		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(ErrorClassUnrecoverable)).
			Msg("Catalog request error")
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassUnrecoverable, Body: string(body)}
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
