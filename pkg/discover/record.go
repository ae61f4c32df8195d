package discover

import (
	"strconv"
)

// Record is a normalized discover result.
type Record struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Link             string  `json:"link"`
	Poster           string  `json:"poster"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
}

// YearBucket holds the records fetched for one year.
type YearBucket struct {
	Year    int      `json:"year"`
	Records []Record `json:"records"`

	// Pages is the number of pages fetched for the year.
	Pages int `json:"pages"`

	// Err is set when pagination stopped on an unrecoverable response.
	// Records then holds only the pages fetched before it.
	Err error `json:"-"`
}

// Partial reports whether the bucket is missing pages.
func (b YearBucket) Partial() bool {
	return b.Err != nil
}

// discoverResponse is the success body of the discover endpoint.
type discoverResponse struct {
	Page       int         `json:"page"`
	Results    []rawResult `json:"results"`
	TotalPages int         `json:"total_pages"`
}

type rawResult struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	PosterPath       string  `json:"poster_path"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	Popularity       float64 `json:"popularity"`
}

// normalize builds a Record. The poster path is appended verbatim, so a
// missing path yields a URL without an image file.
func (c Config) normalize(r rawResult) Record {
	return Record{
		ID:               r.ID,
		Title:            r.Title,
		Link:             c.ItemURL + strconv.FormatInt(r.ID, 10) + "?language=" + c.Language,
		Poster:           c.ImageURL + r.PosterPath,
		OriginalLanguage: r.OriginalLanguage,
		ReleaseDate:      r.ReleaseDate,
		VoteAverage:      r.VoteAverage,
		Popularity:       r.Popularity,
	}
}
