// Package system provides clock implementations for the crawl engine.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Static is a clock frozen at one instant. Born dates are validated against
// it, which keeps replayed crawls reproducible.
type Static struct {
	at time.Time
}

// NewStatic returns a clock that always reports at.
func NewStatic(at time.Time) *Static {
	return &Static{at: at.UTC()}
}

// Now returns the frozen instant.
func (s *Static) Now() time.Time {
	return s.at
}
