package curate

import (
	"errors"
	"testing"

	"github.com/Sternrassler/tmdb-discover/pkg/discover"
)

func rec(id int64, popularity float64, title string) discover.Record {
	return discover.Record{ID: id, Popularity: popularity, Title: title}
}

func ids(records []discover.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("most_populars")
	if err != nil || m != ModeMostPopulars {
		t.Errorf("ParseMode(most_populars) = %q, %v", m, err)
	}
	if _, err := ParseMode("least_populars"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(least_populars) error = %v, want ErrUnknownMode", err)
	}
}

func TestCurate_UnknownMode(t *testing.T) {
	_, err := Curate(nil, Mode("by_title"))
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Curate() error = %v, want ErrUnknownMode", err)
	}
}

func TestCurate_SortsAcrossBuckets(t *testing.T) {
	buckets := []discover.YearBucket{
		{Year: 2020, Records: []discover.Record{rec(1, 5, ""), rec(2, 50, "")}},
		{Year: 2021, Records: []discover.Record{rec(3, 20, ""), rec(4, 1, ""), rec(5, 70, "")}},
	}

	got, err := Curate(buckets, ModeMostPopulars)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{5, 2, 3, 1, 4}; !equalIDs(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
}

func TestCurate_DedupKeepsMostPopular(t *testing.T) {
	buckets := []discover.YearBucket{
		{Year: 2020, Records: []discover.Record{rec(7, 10, "low")}},
		{Year: 2021, Records: []discover.Record{rec(7, 90, "high"), rec(8, 30, "")}},
	}

	got, err := Curate(buckets, ModeMostPopulars)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].ID != 7 || got[0].Title != "high" {
		t.Errorf("kept %+v, want the popularity 90 copy", got[0])
	}
}

func TestCurate_TiesKeepEarlierOccurrence(t *testing.T) {
	buckets := []discover.YearBucket{
		{Year: 2020, Records: []discover.Record{rec(1, 10, "first"), rec(2, 10, "")}},
		{Year: 2021, Records: []discover.Record{rec(1, 10, "second"), rec(3, 10, "")}},
	}

	got, err := Curate(buckets, ModeMostPopulars)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{1, 2, 3}; !equalIDs(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Title != "first" {
		t.Errorf("tie kept %q, want the earlier copy", got[0].Title)
	}
}

func TestCurate_SortedInputUnchanged(t *testing.T) {
	sorted := []discover.Record{rec(9, 99, ""), rec(8, 80, ""), rec(8, 70, ""), rec(7, 70, ""), rec(6, 1, "")}

	got, err := Curate([]discover.YearBucket{{Records: sorted}}, ModeMostPopulars)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{9, 8, 7, 6}; !equalIDs(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}

	again, _ := Curate([]discover.YearBucket{{Records: got}}, ModeMostPopulars)
	if !equalIDs(ids(again), ids(got)) {
		t.Errorf("second pass changed order: %v -> %v", ids(got), ids(again))
	}
}

func TestCurate_DoesNotMutateBuckets(t *testing.T) {
	buckets := []discover.YearBucket{{Year: 2020, Records: []discover.Record{rec(1, 1, ""), rec(2, 2, "")}}}

	if _, err := Curate(buckets, ModeMostPopulars); err != nil {
		t.Fatal(err)
	}
	if buckets[0].Records[0].ID != 1 {
		t.Error("Curate reordered the caller's bucket")
	}
}

func TestCurate_Empty(t *testing.T) {
	got, err := Curate(nil, ModeMostPopulars)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}
