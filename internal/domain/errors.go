package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamFetch   = errors.New("upstream fetch failed")
	ErrMalformedData   = errors.New("malformed data")
	ErrNotFound        = errors.New("not found")
	ErrAmbiguousSymbol = errors.New("ambiguous symbol unresolved")
	ErrUnsupported     = errors.New("unsupported operation")
	ErrTooMuchData     = errors.New("too much data requested")
)

// FetchError describes a failed upstream call. It matches ErrUpstreamFetch.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: http status %d: %s", e.URL, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s failed", e.URL)
	}
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamFetch}
	}
	return []error{ErrUpstreamFetch, e.Err}
}
