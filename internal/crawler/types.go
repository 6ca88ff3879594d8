package crawler

import (
	"time"
)

// FetchKind labels what a fetch is for; it drives logging and metrics.
type FetchKind string

// Fetch kinds issued by the engine.
const (
	FetchListing FetchKind = "listing"
	FetchAuthor  FetchKind = "author"
)

// Quote is one quote block extracted from a listing page. It is a value and
// is never mutated after construction.
type Quote struct {
	Author string   `json:"author"`
	Text   string   `json:"quote"`
	Tags   []string `json:"tags"`
}

// AuthorRef is an author mention taken from a quote block. Href is relative
// to the site base URL.
type AuthorRef struct {
	Name string
	Href string
}

// ListingPage is the parsed form of one quote listing page.
type ListingPage struct {
	Quotes []Quote
	// Refs holds one entry per quote block, in block order.
	Refs []AuthorRef
	// Next is the relative link to the following page, empty on the last page.
	Next string
}

// AuthorDetails carries the raw biography fields read from an author page.
// Nil means the element was absent from the markup.
type AuthorDetails struct {
	BornDate     *string
	BornLocation *string
	Description  *string
}

// Author is a validated biography record. FullName is the join key used by
// quotes.
type Author struct {
	FullName     string  `json:"fullname"`
	BornDate     *string `json:"born_date"`
	BornLocation *string `json:"born_location"`
	Description  *string `json:"description"`
}

// AuthorFailure records why an author could not be resolved.
type AuthorFailure struct {
	Name   string
	Reason string
}

// Snapshot is a point-in-time copy of the record store taken after a crawl.
type Snapshot struct {
	Quotes  []Quote
	Authors []Author
	Failed  []AuthorFailure
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL  string
	Kind FetchKind
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Report summarizes one crawl run.
type Report struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Pages       int64     `json:"pages"`
	FailedPages int64     `json:"failed_pages"`
	Quotes      int       `json:"quotes"`
	Authors     int       `json:"authors"`
	AuthorSkips int64     `json:"author_skips"`
	// FailedAuthors lists the names that were claimed but not resolved.
	FailedAuthors []string `json:"failed_authors"`
	Outputs       []string `json:"outputs"`
	// BranchErrors aggregates non-fatal failures: pages, authors, sink and
	// notifier.
	BranchErrors error `json:"-"`
}
