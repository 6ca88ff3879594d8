package crawler

import (
	"errors"
	"fmt"
)

// ErrRootPage marks a failure of the first listing page. Nothing has been
// collected at that point, so the run produces no output.
var ErrRootPage = errors.New("root listing page failed")

// ErrNotClaimed is returned when a store transition is attempted for an author
// that is not in the claimed state.
var ErrNotClaimed = errors.New("author not claimed")

// ErrOutOfScope is returned for links that leave the crawled site.
var ErrOutOfScope = errors.New("link outside crawl scope")

// FetchErrorKind separates retryable fetch failures from final ones.
type FetchErrorKind int

// Fetch error kinds.
const (
	FetchTransient FetchErrorKind = iota
	FetchPermanent
)

func (k FetchErrorKind) String() string {
	if k == FetchTransient {
		return "transient"
	}
	return "permanent"
}

// FetchError is returned by fetchers. StatusCode is zero when no response was
// received.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch error for %s (status %d): %v", e.Kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch error for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a transient FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == FetchTransient
	}
	return false
}

// ParseError means an expected element or attribute was absent from an
// otherwise successful response.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %q", e.Selector)
	if e.URL != "" {
		msg += " at " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError rejects a record whose field fails domain rules.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
