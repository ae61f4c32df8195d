package pagination

import (
	"context"
	"fmt"

	"github.com/Sternrassler/tmdb-discover/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discover_pages_fetched_total",
		Help: "Total number of pages fetched successfully",
	})

	walksAbortedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discover_walks_aborted_total",
		Help: "Total number of page walks aborted by an unrecoverable response",
	})
)

// State of a page walk.
type State int

const (
	// StateFetching means more pages are expected.
	StateFetching State = iota
	// StateDone means the last reported page was fetched.
	StateDone
	// StateAborted means a page failed with an unrecoverable response.
	StateAborted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Page is one fetched page.
type Page[T any] struct {
	Number     int
	TotalPages int
	Results    []T
}

// PageFetcher fetches a single page of one query.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, pageNum int) (Page[T], error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc[T any] func(ctx context.Context, pageNum int) (Page[T], error)

// FetchPage implements PageFetcher.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, pageNum int) (Page[T], error) {
	return f(ctx, pageNum)
}

// Result of a walk.
type Result[T any] struct {
	// Items from every page reached, in page order.
	Items []T

	// Pages is the number of pages fetched successfully.
	Pages int

	// State is StateDone or StateAborted.
	State State

	// Err is the abort reason when State is StateAborted.
	Err error
}

// Walker drives pagination for one query.
type Walker[T any] struct {
	fetcher PageFetcher[T]
	logger  zerolog.Logger
}

// NewWalker creates a walker over fetcher.
func NewWalker[T any](fetcher PageFetcher[T], logger zerolog.Logger) *Walker[T] {
	return &Walker[T]{fetcher: fetcher, logger: logger}
}

// Walk fetches pages 1..total_pages. An unrecoverable page error ends the
// walk with StateAborted and a nil error; every other failure is returned
// together with the items gathered so far.
func (w *Walker[T]) Walk(ctx context.Context) (Result[T], error) {
	res := Result[T]{State: StateFetching}

	for page := 1; res.State == StateFetching; page++ {
		p, err := w.fetcher.FetchPage(ctx, page)
		if err != nil {
			if client.IsUnrecoverable(err) {
				walksAbortedTotal.Inc()
				w.logger.Warn().
					Err(err).
					Int("page", page).
					Int("pages_kept", res.Pages).
					Msg("Page request failed, keeping earlier pages")
				res.State = StateAborted
				res.Err = fmt.Errorf("page %d: %w", page, err)
				break
			}
			return res, fmt.Errorf("fetch page %d: %w", page, err)
		}

		pagesFetchedTotal.Inc()
		res.Items = append(res.Items, p.Results...)
		res.Pages = page

		w.logger.Debug().
			Int("page", page).
			Int("total_pages", p.TotalPages).
			Int("results", len(p.Results)).
			Msg("Page fetched")

		if page >= p.TotalPages {
			res.State = StateDone
		}
	}

	return res, nil
}
