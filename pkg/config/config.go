// Package config holds the typed configuration of a discover run and loads
// it from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/tmdb-discover/pkg/client"
	"github.com/Sternrassler/tmdb-discover/pkg/discover"
	"github.com/Sternrassler/tmdb-discover/pkg/ratelimit"
)

var (
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrInvalid is returned for malformed or out of range settings.
	ErrInvalid = errors.New("invalid configuration")
)

// Defaults.
const (
	DefaultBaseURL     = "https://api.themoviedb.org"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultRenderLimit = 0
)

// Rate limiter backends.
const (
	BackendSliding     = "sliding"
	BackendTokenBucket = "token_bucket"
	BackendRedis       = "redis"
)

// Recognized discover options.
const (
	OptSortBy               = "sort_by"
	OptRegion               = "region"
	OptWithGenres           = "with_genres"
	OptWithOriginalLanguage = "with_original_language"
	OptIncludeAdult         = "include_adult"
	OptIncludeVideo         = "include_video"
)

// Config is the full configuration of a discover run.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Path     string
	Options  Options

	RateLimit RateLimit
	Retry     client.RetryConfig

	HTTPTimeout time.Duration
	Log         Log

	// RenderLimit caps the number of curated records printed. Zero, the
	// default, prints all of them.
	RenderLimit int

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string
}

// RateLimit selects and sizes the limiter.
type RateLimit struct {
	ratelimit.Config

	Backend   string
	RedisAddr string
	RedisKey  string
}

// Log configures the root logger.
type Log struct {
	Level  string
	Pretty bool
}

// Options are the static discover query parameters.
type Options struct {
	SortBy               string
	Region               string
	WithGenres           string
	WithOriginalLanguage string
	IncludeAdult         string
	IncludeVideo         string

	// Extra is passed through unchanged.
	Extra map[string]string
}

// Values returns the options as query values. Recognized fields win over
// Extra entries with the same key.
func (o Options) Values() url.Values {
	v := url.Values{}
	for k, val := range o.Extra {
		v.Set(k, val)
	}
	for k, val := range map[string]string{
		OptSortBy:               o.SortBy,
		OptRegion:               o.Region,
		OptWithGenres:           o.WithGenres,
		OptWithOriginalLanguage: o.WithOriginalLanguage,
		OptIncludeAdult:         o.IncludeAdult,
		OptIncludeVideo:         o.IncludeVideo,
	} {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// Set assigns an option by its query key. Unknown keys go to Extra.
func (o *Options) Set(key, value string) {
	switch key {
	case OptSortBy:
		o.SortBy = value
	case OptRegion:
		o.Region = value
	case OptWithGenres:
		o.WithGenres = value
	case OptWithOriginalLanguage:
		o.WithOriginalLanguage = value
	case OptIncludeAdult:
		o.IncludeAdult = value
	case OptIncludeVideo:
		o.IncludeVideo = value
	default:
		if o.Extra == nil {
			o.Extra = make(map[string]string)
		}
		o.Extra[key] = value
	}
}

// Default returns the configuration with every default applied and no
// credential.
func Default() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Language: discover.DefaultLanguage,
		Path:     discover.DefaultPath,
		RateLimit: RateLimit{
			Config:   ratelimit.DefaultConfig(),
			Backend:  BackendSliding,
			RedisKey: ratelimit.DefaultRedisKey,
		},
		Retry:       client.DefaultRetryConfig(),
		HTTPTimeout: DefaultHTTPTimeout,
		Log:         Log{Level: "info"},
		RenderLimit: DefaultRenderLimit,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredential
	}

	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("%w: base url must be absolute (got %q)", ErrInvalid, c.BaseURL)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("%w: path must start with / (got %q)", ErrInvalid, c.Path)
	}
	if c.Language == "" {
		return fmt.Errorf("%w: language is required", ErrInvalid)
	}

	for _, b := range []struct{ key, val string }{
		{OptIncludeAdult, c.Options.IncludeAdult},
		{OptIncludeVideo, c.Options.IncludeVideo},
	} {
		if b.val == "" {
			continue
		}
		if _, err := strconv.ParseBool(b.val); err != nil {
			return fmt.Errorf("%w: %s must be a boolean (got %q)", ErrInvalid, b.key, b.val)
		}
	}

	if err := c.RateLimit.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.RateLimit.Backend {
	case BackendSliding, BackendTokenBucket:
	case BackendRedis:
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend needs a redis address", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown rate limit backend %q", ErrInvalid, c.RateLimit.Backend)
	}

	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", ErrInvalid)
	}
	if c.RenderLimit < 0 {
		return fmt.Errorf("%w: render limit must not be negative", ErrInvalid)
	}
	return nil
}

// Discover returns the engine configuration.
func (c Config) Discover() discover.Config {
	cfg := discover.DefaultConfig()
	cfg.Path = c.Path
	cfg.Language = c.Language
	cfg.Options = c.Options.Values()
	return cfg
}

// Fields returns a loggable summary without the credential.
func (c Config) Fields() map[string]any {
	opts := c.Options.Values()
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return map[string]any{
		"base_url":     c.BaseURL,
		"path":         c.Path,
		"language":     c.Language,
		"options":      keys,
		"rate_backend": c.RateLimit.Backend,
		"rate_calls":   c.RateLimit.Calls,
		"rate_period":  c.RateLimit.Period.String(),
		"retry_max":    c.Retry.MaxAttempts,
		"http_timeout": c.HTTPTimeout.String(),
		"render_limit": c.RenderLimit,
		"metrics_addr": c.MetricsAddr,
	}
}
