package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Environment variables read by FromEnv.
const (
	EnvBaseURL              = "TMDB_URL"
	EnvAPIKey               = "TMDB_API_KEY"
	EnvLanguage             = "TMDB_LANGUAGE"
	EnvPath                 = "TMDB_PATH"
	EnvOptions              = "TMDB_OPTIONS"
	EnvSortBy               = "TMDB_SORT_BY"
	EnvRegion               = "TMDB_REGION"
	EnvWithGenres           = "TMDB_WITH_GENRES"
	EnvWithOriginalLanguage = "TMDB_WITH_ORIGINAL_LANGUAGE"
	EnvIncludeAdult         = "TMDB_INCLUDE_ADULT"
	EnvIncludeVideo         = "TMDB_INCLUDE_VIDEO"
	EnvRateCalls            = "TMDB_RATE_LIMIT_CALLS"
	EnvRatePeriod           = "TMDB_RATE_LIMIT_PERIOD"
	EnvRateBackend          = "TMDB_RATE_LIMIT_BACKEND"
	EnvRateKey              = "TMDB_RATE_LIMIT_KEY"
	EnvRedisURL             = "REDIS_URL"
	EnvRetryMaxAttempts     = "TMDB_RETRY_MAX_ATTEMPTS"
	EnvRetryInitialBackoff  = "TMDB_RETRY_INITIAL_BACKOFF"
	EnvRetryMaxBackoff      = "TMDB_RETRY_MAX_BACKOFF"
	EnvHTTPTimeout          = "TMDB_HTTP_TIMEOUT"
	EnvRenderLimit          = "TMDB_RENDER_LIMIT"
	EnvLogLevel             = "LOG_LEVEL"
	EnvLogPretty            = "LOG_PRETTY"
	EnvMetricsAddr          = "METRICS_ADDR"
)

// FromEnv overlays environment variables on Default. It reports malformed
// values but does not call Validate, so callers can apply further overrides
// first.
func FromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}
	cfg := Default()

	e.str(EnvBaseURL, &cfg.BaseURL)
	e.str(EnvAPIKey, &cfg.APIKey)
	e.str(EnvLanguage, &cfg.Language)
	e.str(EnvPath, &cfg.Path)

	if raw, ok := e.get(EnvOptions); ok {
		if err := ParseOptions(raw, &cfg.Options); err != nil && e.err == nil {
			e.err = fmt.Errorf("%s: %w", EnvOptions, err)
		}
	}
	e.str(EnvSortBy, &cfg.Options.SortBy)
	e.str(EnvRegion, &cfg.Options.Region)
	e.str(EnvWithGenres, &cfg.Options.WithGenres)
	e.str(EnvWithOriginalLanguage, &cfg.Options.WithOriginalLanguage)
	e.str(EnvIncludeAdult, &cfg.Options.IncludeAdult)
	e.str(EnvIncludeVideo, &cfg.Options.IncludeVideo)

	e.int(EnvRateCalls, &cfg.RateLimit.Calls)
	e.duration(EnvRatePeriod, &cfg.RateLimit.Period)
	e.str(EnvRateBackend, &cfg.RateLimit.Backend)
	e.str(EnvRateKey, &cfg.RateLimit.RedisKey)
	e.str(EnvRedisURL, &cfg.RateLimit.RedisAddr)

	e.int(EnvRetryMaxAttempts, &cfg.Retry.MaxAttempts)
	e.duration(EnvRetryInitialBackoff, &cfg.Retry.InitialBackoff)
	e.duration(EnvRetryMaxBackoff, &cfg.Retry.MaxBackoff)
	e.duration(EnvHTTPTimeout, &cfg.HTTPTimeout)
	e.int(EnvRenderLimit, &cfg.RenderLimit)

	e.str(EnvLogLevel, &cfg.Log.Level)
	e.bool(EnvLogPretty, &cfg.Log.Pretty)
	e.str(EnvMetricsAddr, &cfg.MetricsAddr)

	return cfg, e.err
}

// ParseOptions reads "key=value,key=value" into opts.
func ParseOptions(raw string, opts *Options) error {
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if err := ParseOption(pair, opts); err != nil {
			return err
		}
	}
	return nil
}

// ParseOption reads a single "key=value" into opts.
func ParseOption(pair string, opts *Options) error {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("%w: option %q is not key=value", ErrInvalid, pair)
	}
	opts.Set(key, strings.TrimSpace(value))
	return nil
}

// envReader keeps the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}
