package discover

import (
	"net/url"
	"sort"
)

// Per-call query keys. They always override static options.
const (
	ParamLanguage        = "language"
	ParamReleaseDateFrom = "release_date.gte"
	ParamReleaseDateTo   = "release_date.lte"
	ParamPage            = "page"
)

// Params is an immutable set of query parameters. With returns a modified
// copy, so one base set can be shared by every page and year.
type Params struct {
	values url.Values
}

// NewParams copies static options into a Params.
func NewParams(static url.Values) Params {
	p := Params{values: make(url.Values, len(static)+4)}
	for k, v := range static {
		p.values[k] = append([]string(nil), v...)
	}
	return p
}

// With returns a copy of p with key set to value, replacing any previous value.
func (p Params) With(key, value string) Params {
	next := NewParams(p.values)
	next.values.Set(key, value)
	return next
}

// Get returns the value of key.
func (p Params) Get(key string) string {
	return p.values.Get(key)
}

// Values returns a copy of the parameters.
func (p Params) Values() url.Values {
	return NewParams(p.values).values
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode encodes the parameters in "URL encoded" form sorted by key.
func (p Params) Encode() string {
	return p.values.Encode()
}
