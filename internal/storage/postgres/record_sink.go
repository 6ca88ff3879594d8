// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultQuotesTable  = "quotes"
	DefaultAuthorsTable = "authors"
)

// RecordSinkConfig controls the Postgres connection pool and target tables.
type RecordSinkConfig struct {
	DSN             string
	QuotesTable     string
	AuthorsTable    string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RecordSink writes the quote and author datasets of a run into Postgres.
type RecordSink struct {
	pool    txBeginner
	quotes  string
	authors string
}

var _ crawler.RecordSink = (*RecordSink)(nil)

// NewRecordSink connects to Postgres using the provided config.
func NewRecordSink(ctx context.Context, cfg RecordSinkConfig) (*RecordSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	quotes, authors, err := tableNames(cfg.QuotesTable, cfg.AuthorsTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordSink{pool: pool, quotes: quotes, authors: authors}, nil
}

// NewRecordSinkWithPool constructs a sink from an existing pool (primarily for testing).
func NewRecordSinkWithPool(pool txBeginner, quotesTable, authorsTable string) (*RecordSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	quotes, authors, err := tableNames(quotesTable, authorsTable)
	if err != nil {
		return nil, err
	}
	return &RecordSink{pool: pool, quotes: quotes, authors: authors}, nil
}

func tableNames(quotes, authors string) (string, string, error) {
	if quotes == "" {
		quotes = DefaultQuotesTable
	}
	if authors == "" {
		authors = DefaultAuthorsTable
	}
	for _, name := range []string{quotes, authors} {
		if !validTableName.MatchString(name) {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
	}
	return quotes, authors, nil
}

// Close releases the underlying pool resources.
func (s *RecordSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the target tables when they do not exist.
func (s *RecordSink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	fullname      TEXT PRIMARY KEY,
	born_date     TEXT,
	born_location TEXT,
	description   TEXT,
	run_id        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	run_id   TEXT    NOT NULL,
	position INTEGER NOT NULL,
	author   TEXT    NOT NULL,
	quote    TEXT    NOT NULL,
	tags     TEXT[]  NOT NULL,
	PRIMARY KEY (run_id, position)
)`, s.authors, s.quotes)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Persist upserts every resolved author by name and inserts the run's quotes
// with their position, all inside one transaction.
func (s *RecordSink) Persist(ctx context.Context, runID string, snap crawler.Snapshot) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record sink is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	authorQuery := fmt.Sprintf(`
INSERT INTO %s (fullname, born_date, born_location, description, run_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (fullname) DO UPDATE
SET born_date = EXCLUDED.born_date,
	born_location = EXCLUDED.born_location,
	description = EXCLUDED.description,
	run_id = EXCLUDED.run_id`, s.authors)
	for _, a := range snap.Authors {
		if _, err = tx.Exec(ctx, authorQuery, a.FullName, a.BornDate, a.BornLocation, a.Description, runID); err != nil {
			return fmt.Errorf("upsert author %q: %w", a.FullName, err)
		}
	}

	quoteQuery := fmt.Sprintf(`
INSERT INTO %s (run_id, position, author, quote, tags)
VALUES ($1, $2, $3, $4, $5)`, s.quotes)
	for i, q := range snap.Quotes {
		if _, err = tx.Exec(ctx, quoteQuery, runID, i, q.Author, q.Text, q.Tags); err != nil {
			return fmt.Errorf("insert quote %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
