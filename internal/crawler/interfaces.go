package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser turns raw markup into typed records.
type Parser interface {
	ParseListing(body []byte) (ListingPage, error)
	ParseAuthor(body []byte) (AuthorDetails, error)
}

// RecordStore holds the crawl-wide results. Implementations must be safe for
// concurrent use.
type RecordStore interface {
	AppendQuotes(quotes ...Quote)
	// ClaimAuthor returns true for exactly one caller per name.
	ClaimAuthor(name string) bool
	PopulateAuthor(name string, author Author) error
	FailAuthor(name string, reason error) error
	Snapshot() Snapshot
}

// LinkPolicy decides whether a resolved link may be fetched.
type LinkPolicy interface {
	AllowFetch(rawURL string) bool
}

// BlobStore writes an artifact and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Exporter serializes a finished snapshot and returns the written URIs.
type Exporter interface {
	Export(ctx context.Context, snap Snapshot) ([]string, error)
}

// RecordSink persists a finished snapshot somewhere other than the export files.
type RecordSink interface {
	Persist(ctx context.Context, runID string, snap Snapshot) error
}

// Notifier announces a finished run.
type Notifier interface {
	Notify(ctx context.Context, report Report) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Hasher produces content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
