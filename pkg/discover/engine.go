// Package discover fetches discover results for every year of a date window.
package discover

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/tmdb-discover/pkg/pagination"
	"github.com/Sternrassler/tmdb-discover/pkg/window"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults of the catalog.
const (
	DefaultPath     = "/3/discover/movie"
	DefaultLanguage = "en-US"
	DefaultItemURL  = "https://www.themoviedb.org/movie/"
	DefaultImageURL = "https://image.tmdb.org/t/p/w200/"
)

var (
	yearsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discover_years_total",
		Help: "Years fetched by outcome",
	}, []string{"outcome"})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discover_records_total",
		Help: "Total number of records normalized",
	})
)

// Getter is the HTTP side of the engine. *client.Client implements it.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Config holds the engine configuration.
type Config struct {
	// Path of the discover endpoint.
	Path string

	// Language tag sent with every call and appended to record links.
	Language string

	// Options are static query parameters. Per-call keys override them.
	Options url.Values

	// ItemURL prefixes the id in Record.Link.
	ItemURL string

	// ImageURL prefixes the poster path in Record.Poster.
	ImageURL string
}

// DefaultConfig returns the movie discover configuration.
func DefaultConfig() Config {
	return Config{
		Path:     DefaultPath,
		Language: DefaultLanguage,
		ItemURL:  DefaultItemURL,
		ImageURL: DefaultImageURL,
	}
}

// Engine runs one paginated query per year of a window.
type Engine struct {
	getter Getter
	window window.DateWindow
	config Config
	logger zerolog.Logger
}

// New creates an engine.
func New(getter Getter, w window.DateWindow, cfg Config) (*Engine, error) {
	if getter == nil {
		return nil, errors.New("getter is required")
	}
	w, err := window.New(w.SinceYear, w.ToYear, w.Since, w.To)
	if err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.Language == "" {
		cfg.Language = defaults.Language
	}
	if cfg.ItemURL == "" {
		cfg.ItemURL = defaults.ItemURL
	}
	if cfg.ImageURL == "" {
		cfg.ImageURL = defaults.ImageURL
	}

	return &Engine{
		getter: getter,
		window: w,
		config: cfg,
		logger: log.With().Str("component", "discover").Logger(),
	}, nil
}

// Discover returns one bucket per year in ascending order. A year whose
// pagination aborts yields a partial bucket and the run continues. A terminal
// failure stops the run; the buckets completed before it are returned with
// the error.
func (e *Engine) Discover(ctx context.Context) ([]YearBucket, error) {
	base := NewParams(e.config.Options).With(ParamLanguage, e.config.Language)
	years := e.window.Years()
	buckets := make([]YearBucket, 0, len(years))

	for _, year := range years {
		bucket, err := e.discoverYear(ctx, base, year)
		if err != nil {
			yearsFetchedTotal.WithLabelValues("failed").Inc()
			e.logger.Error().
				Err(err).
				Int("year", year).
				Int("years_completed", len(buckets)).
				Msg("Discover run failed")
			return buckets, fmt.Errorf("discover year %d: %w", year, err)
		}
		buckets = append(buckets, bucket)
	}

	return buckets, nil
}

func (e *Engine) discoverYear(ctx context.Context, base Params, year int) (YearBucket, error) {
	since, to := e.window.ForYear(year)
	params := base.
		With(ParamReleaseDateFrom, since.Format(window.DateFormat)).
		With(ParamReleaseDateTo, to.Format(window.DateFormat))

	start := time.Now()
	fetcher := pagination.FetcherFunc[Record](func(ctx context.Context, pageNum int) (pagination.Page[Record], error) {
		var resp discoverResponse
		query := params.With(ParamPage, strconv.Itoa(pageNum)).Values()
		if err := e.getter.GetJSON(ctx, e.config.Path, query, &resp); err != nil {
			return pagination.Page[Record]{}, err
		}

		records := make([]Record, 0, len(resp.Results))
		for _, r := range resp.Results {
			records = append(records, e.config.normalize(r))
		}
		recordsTotal.Add(float64(len(records)))
		return pagination.Page[Record]{Number: pageNum, TotalPages: resp.TotalPages, Results: records}, nil
	})

	logger := e.logger.With().Int("year", year).Logger()
	res, err := pagination.NewWalker[Record](fetcher, logger).Walk(ctx)
	if err != nil {
		return YearBucket{}, err
	}

	bucket := YearBucket{Year: year, Records: res.Items, Pages: res.Pages, Err: res.Err}
	if bucket.Records == nil {
		bucket.Records = []Record{}
	}

	event := logger.Info()
	outcome := "complete"
	if bucket.Partial() {
		event = logger.Warn().Err(bucket.Err)
		outcome = "partial"
	}
	yearsFetchedTotal.WithLabelValues(outcome).Inc()
	event.
		Str("since", since.Format(window.DateFormat)).
		Str("to", to.Format(window.DateFormat)).
		Int("pages", bucket.Pages).
		Int("records", len(bucket.Records)).
		Dur("duration", time.Since(start)).
		Msgf("Fetched movies of year %d", year)

	return bucket, nil
}
