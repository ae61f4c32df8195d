// Package curate flattens yearly discover buckets into one ranked,
// deduplicated list.
package curate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Sternrassler/tmdb-discover/pkg/discover"
)

// ErrUnknownMode is returned for an unrecognized curation mode.
var ErrUnknownMode = errors.New("unknown curation mode")

// Mode selects the ranking applied by Curate.
type Mode string

const (
	// ModeMostPopulars ranks by popularity, highest first.
	ModeMostPopulars Mode = "most_populars"
)

// Modes lists the supported modes.
func Modes() []Mode {
	return []Mode{ModeMostPopulars}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.TrimSpace(s))
	for _, known := range Modes() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// Curate ranks the records of all buckets and removes duplicate ids.
//
// For ModeMostPopulars records are sorted by descending popularity; the sort
// is stable, so ties keep bucket then page order. Deduplication keeps the
// first occurrence of each id in the sorted order, i.e. its most popular copy.
func Curate(buckets []discover.YearBucket, mode Mode) ([]discover.Record, error) {
	switch mode {
	case ModeMostPopulars:
		flat := flatten(buckets)
		sort.SliceStable(flat, func(i, j int) bool {
			return flat[i].Popularity > flat[j].Popularity
		})
		return dedup(flat), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
}

func flatten(buckets []discover.YearBucket) []discover.Record {
	n := 0
	for _, b := range buckets {
		n += len(b.Records)
	}
	flat := make([]discover.Record, 0, n)
	for _, b := range buckets {
		flat = append(flat, b.Records...)
	}
	return flat
}

func dedup(records []discover.Record) []discover.Record {
	seen := make(map[int64]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
