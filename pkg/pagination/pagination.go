package pagination

import (
	"net/url"
	"strconv"
)

// PageRequest selects a window of the claim list: Skip claims are passed
// over and at most Limit are returned.
type PageRequest struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// Normalize clamps the request to the configured limits.
func (r *PageRequest) Normalize(cfg Config) {
	if r.Skip < 0 {
		r.Skip = 0
	}
	if r.Limit < 1 {
		r.Limit = cfg.DefaultLimit
	}
	if r.Limit > cfg.MaxLimit {
		r.Limit = cfg.MaxLimit
	}
}

// Encode writes the window into values as the skip and limit parameters.
func (r PageRequest) Encode(values url.Values) {
	values.Set("skip", strconv.Itoa(r.Skip))
	values.Set("limit", strconv.Itoa(r.Limit))
}

// PageResult mirrors the server's paginated response envelope.
type PageResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// Next returns the request for the following page. The boolean is false
// once the result reaches Total or a short page is returned.
func (p PageResult[T]) Next() (PageRequest, bool) {
	end := p.Skip + len(p.Items)
	if len(p.Items) == 0 || end >= p.Total || (p.Limit > 0 && len(p.Items) < p.Limit) {
		return PageRequest{}, false
	}
	return PageRequest{Skip: end, Limit: p.Limit}, true
}
