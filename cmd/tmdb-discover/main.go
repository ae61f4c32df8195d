// Command tmdb-discover fetches the movies released inside a day/month window
// for every year of a range, ranks them and prints them as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/tmdb-discover/pkg/client"
	"github.com/Sternrassler/tmdb-discover/pkg/config"
	"github.com/Sternrassler/tmdb-discover/pkg/curate"
	"github.com/Sternrassler/tmdb-discover/pkg/discover"
	"github.com/Sternrassler/tmdb-discover/pkg/logging"
	"github.com/Sternrassler/tmdb-discover/pkg/metrics"
	"github.com/Sternrassler/tmdb-discover/pkg/ratelimit"
	"github.com/Sternrassler/tmdb-discover/pkg/window"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// minYear is the earliest year the catalog is queried for.
const minYear = 1900

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "tmdb-discover: %v\n", err)
		}
		os.Exit(1)
	}
}

// output is the rendered result of a run.
type output struct {
	Header  string            `json:"header"`
	Content []discover.Record `json:"content"`
}

// optionsFlag collects repeated -opt key=value flags.
type optionsFlag struct {
	opts *config.Options
}

func (f optionsFlag) String() string { return "" }

func (f optionsFlag) Set(v string) error {
	return config.ParseOption(v, f.opts)
}

type request struct {
	window window.DateWindow
	mode   curate.Mode
}

func run(ctx context.Context, args []string, lookup config.LookupFunc, stdout, stderr io.Writer) error {
	cfg, err := config.FromEnv(lookup)
	if err != nil {
		return err
	}

	req, err := parseFlags(args, &cfg, stderr, time.Now().Year())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: stderr,
		RunID:  logging.NewRunID(),
	})
	logger := logging.NewLogger("cli")
	logger.Info().Fields(cfg.Fields()).
		Int("since_year", req.window.SinceYear).
		Int("to_year", req.window.ToYear).
		Str("mode", string(req.mode)).
		Msg("Starting discover run")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg.RateLimit, logging.NewLogger("ratelimit"))
	if err != nil {
		return err
	}
	defer closeLimiter()

	c, err := client.New(client.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Limiter: limiter,
		Timeout: cfg.HTTPTimeout,
		Retry:   cfg.Retry,
	})
	if err != nil {
		return err
	}

	engine, err := discover.New(c, req.window, cfg.Discover())
	if err != nil {
		return err
	}

	buckets, err := engine.Discover(ctx)
	if err != nil {
		return err
	}

	records, err := curate.Curate(buckets, req.mode)
	if err != nil {
		return err
	}
	logger.Info().Int("movies", len(records)).Int("years", len(buckets)).Msgf("Fetched %d movies", len(records))

	if cfg.RenderLimit > 0 && len(records) > cfg.RenderLimit {
		records = records[:cfg.RenderLimit]
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{Header: req.window.Header(), Content: records})
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer, currentYear int) (request, error) {
	fs := flag.NewFlagSet("tmdb-discover", flag.ContinueOnError)
	fs.SetOutput(stderr)

	sinceYear := fs.Int("since-year", minYear, "first year to fetch")
	toYear := fs.Int("to-year", currentYear, "last year to fetch")
	from := fs.String("from", "", "first day of the window, dd-mm (default 01-01)")
	to := fs.String("to", "", "last day of the window, dd-mm (default: same as -from, or 07-01)")
	mode := fs.String("mode", string(curate.ModeMostPopulars), "curation mode")

	fs.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "catalog base URL")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "language tag")
	fs.IntVar(&cfg.RenderLimit, "limit", cfg.RenderLimit, "maximum records printed, 0 for all")
	fs.Var(optionsFlag{opts: &cfg.Options}, "opt", "static discover option key=value (repeatable)")
	fs.StringVar(&cfg.RateLimit.Backend, "rate-backend", cfg.RateLimit.Backend, "rate limiter backend: sliding, token_bucket or redis")
	fs.StringVar(&cfg.RateLimit.RedisAddr, "redis-addr", cfg.RateLimit.RedisAddr, "redis address or URL for the redis backend")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Log.Pretty, "pretty", cfg.Log.Pretty, "human-readable logs")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics on this address")

	if err := fs.Parse(args); err != nil {
		return request{}, err
	}
	if fs.NArg() > 0 {
		return request{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	m, err := curate.ParseMode(*mode)
	if err != nil {
		return request{}, err
	}

	if *sinceYear < minYear {
		return request{}, fmt.Errorf("%w: since year must be %d or later (got %d)", window.ErrInvalidRange, minYear, *sinceYear)
	}

	since, until, err := parseDays(*from, *to)
	if err != nil {
		return request{}, err
	}
	w, err := window.New(*sinceYear, *toYear, since, until)
	if err != nil {
		return request{}, err
	}

	return request{window: w, mode: m}, nil
}

// parseDays resolves the -from/-to pair. Without either the default window
// applies; without -to the window is the single -from day.
func parseDays(from, to string) (since, until window.MonthDay, err error) {
	def := window.Default(minYear)
	since, until = def.Since, def.To

	if from != "" {
		if since, err = window.ParseMonthDay(from); err != nil {
			return since, until, err
		}
		until = since
	}
	if to != "" {
		if until, err = window.ParseMonthDay(to); err != nil {
			return since, until, err
		}
	}
	return since, until, nil
}

// newLimiter builds the configured rate limiter and a func releasing it.
func newLimiter(ctx context.Context, cfg config.RateLimit, logger zerolog.Logger) (ratelimit.Limiter, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendTokenBucket:
		l, err := ratelimit.NewTokenBucket(cfg.Config)
		return l, noop, err

	case config.BackendRedis:
		opts, err := redisOptions(cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, noop, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		logger.Info().Str("addr", opts.Addr).Str("key", cfg.RedisKey).Msg("Connected to Redis")

		l, err := ratelimit.NewRedisWindow(redisClient, cfg.RedisKey, cfg.Config, nil, logger)
		if err != nil {
			redisClient.Close()
			return nil, noop, err
		}
		return l, func() { redisClient.Close() }, nil

	default:
		l, err := ratelimit.NewSlidingWindow(cfg.Config, nil, logger)
		return l, noop, err
	}
}

// redisOptions accepts either host:port or a redis:// URL.
func redisOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: redis url: %v", config.ErrInvalid, err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}
