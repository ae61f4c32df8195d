package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Sternrassler/tmdb-discover/internal/testutil"
	"github.com/Sternrassler/tmdb-discover/pkg/client"
	"github.com/Sternrassler/tmdb-discover/pkg/config"
	"github.com/Sternrassler/tmdb-discover/pkg/curate"
	"github.com/Sternrassler/tmdb-discover/pkg/window"
)

func testEnv(mock *testutil.MockCatalog, extra map[string]string) config.LookupFunc {
	env := map[string]string{
		config.EnvBaseURL:             mock.URL(),
		config.EnvAPIKey:              "token",
		config.EnvRetryInitialBackoff: "1ms",
		config.EnvRetryMaxAttempts:    "2",
	}
	for k, v := range extra {
		env[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func runCLI(t *testing.T, lookup config.LookupFunc, args ...string) (output, error) {
	t.Helper()

	var stdout bytes.Buffer
	err := run(context.Background(), args, lookup, &stdout, io.Discard)
	if err != nil {
		if stdout.Len() != 0 {
			t.Errorf("failed run printed output: %s", stdout.String())
		}
		return output{}, err
	}

	var out output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout.String())
	}
	return out, nil
}

func TestRun_CuratesAcrossYears(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(2020, 1, testutil.PageResponse(1,
		testutil.Movie{ID: 1, Title: "A", Popularity: 10},
		testutil.Movie{ID: 2, Title: "B", Popularity: 50},
	))
	mock.SetPage(2021, 1, testutil.PageResponse(1,
		testutil.Movie{ID: 3, Title: "C", Popularity: 20},
		testutil.Movie{ID: 1, Title: "A", Popularity: 99},
	))

	out, err := runCLI(t, testEnv(mock, nil), "-since-year", "2020", "-to-year", "2021")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if out.Header != "Movies released between 01 January and 07 January since 2020" {
		t.Errorf("header = %q", out.Header)
	}
	var got []int64
	for _, r := range out.Content {
		got = append(got, r.ID)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("ids = %v, want [1 2 3]", got)
	}
	if out.Content[0].Popularity != 99 {
		t.Errorf("duplicate kept popularity %v, want 99", out.Content[0].Popularity)
	}
	if !strings.HasPrefix(out.Content[0].Link, "https://www.themoviedb.org/movie/1?language=en-US") {
		t.Errorf("link = %q", out.Content[0].Link)
	}

	if mock.RequestCount() != 2 {
		t.Errorf("%d requests, want 2", mock.RequestCount())
	}
	if auth := mock.Requests()[0].Header.Get("Authorization"); auth != "Bearer token" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestRun_RenderLimit(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(2020, 1, testutil.PageResponse(1,
		testutil.Movie{ID: 1, Popularity: 1},
		testutil.Movie{ID: 2, Popularity: 2},
		testutil.Movie{ID: 3, Popularity: 3},
	))

	out, err := runCLI(t, testEnv(mock, map[string]string{config.EnvRenderLimit: "5"}),
		"-since-year", "2020", "-to-year", "2020", "-limit", "2")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Content) != 2 || out.Content[0].ID != 3 {
		t.Errorf("content = %+v, want the two most popular", out.Content)
	}
}

func TestRun_SingleDayWindowAndOptions(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	env := testEnv(mock, map[string]string{config.EnvOptions: "region=DE"})
	out, err := runCLI(t, env,
		"-since-year", "2020", "-to-year", "2020",
		"-from", "14-02", "-opt", "sort_by=popularity.desc", "-language", "de-DE")
	if err != nil {
		t.Fatal(err)
	}
	if out.Header != "Movies released between 14 February and 14 February since 2020" {
		t.Errorf("header = %q", out.Header)
	}
	if out.Content == nil {
		t.Error("content must be an empty list, not null")
	}

	q := mock.Requests()[0].Query
	if q.Get("release_date.gte") != "2020-02-14" || q.Get("release_date.lte") != "2020-02-14" {
		t.Errorf("range = %s..%s", q.Get("release_date.gte"), q.Get("release_date.lte"))
	}
	if q.Get("region") != "DE" || q.Get("sort_by") != "popularity.desc" || q.Get("language") != "de-DE" {
		t.Errorf("query = %v", q)
	}
}

func TestRun_TokenBucketBackend(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	env := testEnv(mock, map[string]string{config.EnvRatePeriod: "50ms"})
	if _, err := runCLI(t, env, "-since-year", "2020", "-to-year", "2022", "-rate-backend", "token_bucket"); err != nil {
		t.Fatal(err)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("%d requests, want 3", mock.RequestCount())
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr error
	}{
		{
			name:    "missing_api_key",
			env:     map[string]string{config.EnvAPIKey: ""},
			wantErr: config.ErrMissingCredential,
		},
		{
			name:    "invalid_day",
			args:    []string{"-from", "29-02"},
			wantErr: window.ErrInvalidDate,
		},
		{
			name:    "bad_format",
			args:    []string{"-from", "2020-01-01"},
			wantErr: window.ErrInvalidDate,
		},
		{
			name:    "end_before_start",
			args:    []string{"-from", "10-03", "-to", "01-03"},
			wantErr: window.ErrInvalidRange,
		},
		{
			name:    "since_after_to",
			args:    []string{"-since-year", "2022", "-to-year", "2021"},
			wantErr: window.ErrInvalidRange,
		},
		{
			name:    "since_before_min_year",
			args:    []string{"-since-year", "1899"},
			wantErr: window.ErrInvalidRange,
		},
		{
			name:    "unknown_mode",
			args:    []string{"-mode", "least_populars"},
			wantErr: curate.ErrUnknownMode,
		},
		{
			// flag reports Set errors as text, so only failure is checked
			name: "bad_option",
			args: []string{"-opt", "region"},
		},
		{
			name:    "unknown_backend",
			args:    []string{"-rate-backend", "leaky"},
			wantErr: config.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()

			_, err := runCLI(t, testEnv(mock, tt.env), tt.args...)
			if err == nil {
				t.Fatal("run() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("run() error = %v, want %v", err, tt.wantErr)
			}
			if mock.RequestCount() != 0 {
				t.Errorf("invalid input must fail before any request, got %d", mock.RequestCount())
			}
		})
	}
}

func TestRun_RetryExhaustedIsFatal(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(2020, 1, testutil.PageResponse(1, testutil.Movie{ID: 1}))
	mock.SetPage(2021, 1, testutil.NewThrottledResponse())

	_, err := runCLI(t, testEnv(mock, nil), "-since-year", "2020", "-to-year", "2021")
	if !errors.Is(err, client.ErrRetryExhausted) {
		t.Fatalf("run() error = %v, want ErrRetryExhausted", err)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("%d requests, want 1 for 2020 and 2 attempts for 2021", mock.RequestCount())
	}
}

func TestRun_PartialYearStillRenders(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(2020, 1, testutil.PageResponse(2, testutil.Movie{ID: 1, Popularity: 1}))
	mock.SetPage(2020, 2, testutil.NewUnauthorizedResponse())

	out, err := runCLI(t, testEnv(mock, nil), "-since-year", "2020", "-to-year", "2020")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Content) != 1 || out.Content[0].ID != 1 {
		t.Errorf("content = %+v, want the page fetched before the abort", out.Content)
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions("localhost:6379")
	if err != nil || opts.Addr != "localhost:6379" {
		t.Errorf("redisOptions(host:port) = %+v, %v", opts, err)
	}

	opts, err = redisOptions("redis://:pw@cache:6380/2")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Errorf("redisOptions(url) = %+v", opts)
	}

	if _, err := redisOptions("redis://cache:6380/notadb"); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("redisOptions(bad url) error = %v, want ErrInvalid", err)
	}
}

func TestParseDays(t *testing.T) {
	since, until, err := parseDays("", "")
	if err != nil || since.String() != "01 January" || until.String() != "07 January" {
		t.Errorf("parseDays() = %s..%s, %v", since, until, err)
	}

	since, until, err = parseDays("", "15-01")
	if err != nil || since.String() != "01 January" || until.String() != "15 January" {
		t.Errorf("parseDays(to only) = %s..%s, %v", since, until, err)
	}
}

func TestRun_PrintsAllRecordsByDefault(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	movies := make([]testutil.Movie, 25)
	for i := range movies {
		movies[i] = testutil.Movie{ID: int64(i + 1), Popularity: float64(i)}
	}
	mock.SetPage(2020, 1, testutil.PageResponse(1, movies...))

	out, err := runCLI(t, testEnv(mock, nil), "-since-year", "2020", "-to-year", "2020")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Content) != 25 {
		t.Errorf("got %d records, want all 25", len(out.Content))
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg := config.Default()
	req, err := parseFlags(nil, &cfg, io.Discard, 2024)
	if err != nil {
		t.Fatal(err)
	}

	w := req.window
	if w.SinceYear != 1900 || w.ToYear != 2024 {
		t.Errorf("years = %d..%d, want 1900..2024", w.SinceYear, w.ToYear)
	}
	if w.Since.String() != "01 January" || w.To.String() != "07 January" {
		t.Errorf("days = %s..%s", w.Since, w.To)
	}
	if req.mode != curate.ModeMostPopulars {
		t.Errorf("mode = %q", req.mode)
	}
	if cfg.RenderLimit != 0 {
		t.Errorf("RenderLimit = %d, want 0", cfg.RenderLimit)
	}
}
