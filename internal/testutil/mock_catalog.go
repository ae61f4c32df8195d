// Package testutil provides testing utilities for the discover client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

// MockResponse defines the behavior for one mock catalog response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Movie is one entry of a discover page.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	PosterPath       string  `json:"poster_path"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
}

// RecordedRequest is a request received by the mock server.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
	At     time.Time
}

// MockCatalog is a configurable mock discover API. Responses are scripted per
// (year, page), where year is taken from the release_date.gte parameter.
type MockCatalog struct {
	server *httptest.Server
	mu     sync.Mutex
	clock  clock.Clock

	// scripted responses; the last one of each queue repeats
	scripts  map[string][]MockResponse
	requests []RecordedRequest
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		clock:   clock.New(),
		scripts: make(map[string][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// SetClock sets the clock used to timestamp recorded requests.
func (m *MockCatalog) SetClock(clk clock.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clk
}

// SetPage scripts the responses for one page of one year. Successive
// requests consume the responses in order; the last one repeats.
func (m *MockCatalog) SetPage(year, page int, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[scriptKey(strconv.Itoa(year), strconv.Itoa(page))] = resps
}

// RequestCount returns the number of requests made to the server.
func (m *MockCatalog) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockCatalog) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockCatalog) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year := ""
	if gte := query.Get("release_date.gte"); len(gte) >= 4 {
		year = gte[:4]
	}
	key := scriptKey(year, query.Get("page"))

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Path:   r.URL.Path,
		Query:  query,
		Header: r.Header.Clone(),
		At:     m.clock.Now(),
	})
	resp, ok := m.next(key)
	m.mu.Unlock()

	if !ok {
		resp = PageResponse(1)
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// next pops the next scripted response for key. Caller holds m.mu.
func (m *MockCatalog) next(key string) (MockResponse, bool) {
	queue := m.scripts[key]
	if len(queue) == 0 {
		return MockResponse{}, false
	}
	resp := queue[0]
	if len(queue) > 1 {
		m.scripts[key] = queue[1:]
	}
	return resp, true
}

func scriptKey(year, page string) string {
	return year + "/" + page
}

// PageResponse creates a 200 discover page.
func PageResponse(totalPages int, movies ...Movie) MockResponse {
	if movies == nil {
		movies = []Movie{}
	}
	body, err := json.Marshal(struct {
		Page       int     `json:"page"`
		Results    []Movie `json:"results"`
		TotalPages int     `json:"total_pages"`
	}{Page: 1, Results: movies, TotalPages: totalPages})
	if err != nil {
		panic(fmt.Sprintf("marshal page: %v", err))
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json;charset=utf-8"},
	}
}

// NewThrottledResponse creates a 429 Too Many Requests response.
func NewThrottledResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status_code":25,"status_message":"Your request count is over the allowed limit."}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=utf-8", "Retry-After": "1"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status_code":11,"status_message":"Internal error: Something went wrong, contact TMDb."}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=utf-8"},
	}
}

// NewUnauthorizedResponse creates a 401 response for a bad credential.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key."}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=utf-8"},
	}
}
