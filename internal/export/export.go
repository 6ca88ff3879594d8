// Package export writes the quote and author datasets as JSON documents.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Default file names.
const (
	DefaultQuotesFile  = "quotes.json"
	DefaultAuthorsFile = "authors.json"
	contentType        = "application/json; charset=utf-8"
)

// Config names the two documents. Hasher is optional; when set, each
// document's digest is logged alongside its URI.
type Config struct {
	QuotesFile  string
	AuthorsFile string
	Hasher      crawler.Hasher
}

// JSONExporter serializes a snapshot through a BlobStore.
type JSONExporter struct {
	store  crawler.BlobStore
	cfg    Config
	logger *zap.Logger
}

var _ crawler.Exporter = (*JSONExporter)(nil)

// NewJSONExporter returns an exporter writing to store.
func NewJSONExporter(store crawler.BlobStore, cfg Config, logger *zap.Logger) (*JSONExporter, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.QuotesFile == "" {
		cfg.QuotesFile = DefaultQuotesFile
	}
	if cfg.AuthorsFile == "" {
		cfg.AuthorsFile = DefaultAuthorsFile
	}
	if cfg.QuotesFile == cfg.AuthorsFile {
		return nil, fmt.Errorf("quotes and authors files must differ, both are %q", cfg.QuotesFile)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONExporter{store: store, cfg: cfg, logger: logger.Named("export")}, nil
}

// Export encodes both datasets first and only then writes them, so an
// encoding failure leaves no files behind.
func (e *JSONExporter) Export(ctx context.Context, snap crawler.Snapshot) ([]string, error) {
	quotes := snap.Quotes
	if quotes == nil {
		quotes = []crawler.Quote{}
	}
	authors := snap.Authors
	if authors == nil {
		authors = []crawler.Author{}
	}

	quotesDoc, err := Encode(quotes)
	if err != nil {
		return nil, fmt.Errorf("encode quotes: %w", err)
	}
	authorsDoc, err := Encode(authors)
	if err != nil {
		return nil, fmt.Errorf("encode authors: %w", err)
	}

	uris := make([]string, 0, 2)
	for _, doc := range []struct {
		name string
		body []byte
	}{
		{e.cfg.QuotesFile, quotesDoc},
		{e.cfg.AuthorsFile, authorsDoc},
	} {
		uri, err := e.store.PutObject(ctx, doc.name, contentType, bytes.NewReader(doc.body))
		if err != nil {
			return uris, fmt.Errorf("write %s: %w", doc.name, err)
		}
		fields := []zap.Field{zap.String("uri", uri), zap.Int("bytes", len(doc.body))}
		if e.cfg.Hasher != nil {
			if sum, err := e.cfg.Hasher.Hash(doc.body); err == nil {
				fields = append(fields, zap.String("sha256", sum))
			}
		}
		e.logger.Info("document written", fields...)
		uris = append(uris, uri)
	}
	return uris, nil
}

// Encode renders v as indented UTF-8 JSON without HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
