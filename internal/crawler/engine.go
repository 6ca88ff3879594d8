package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Deps groups the collaborators the Engine drives. Policy, Sink and Notifier
// are optional.
type Deps struct {
	Fetcher  Fetcher
	Parser   Parser
	Policy   LinkPolicy
	Store    RecordStore
	Exporter Exporter
	Sink     RecordSink
	Notifier Notifier
	Clock    Clock
	IDs      IDGenerator
	Metrics  *Metrics
}

// Engine walks the listing chain, resolves authors and hands the finished
// datasets to the exporter.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// NewEngine validates cfg and the required collaborators.
func NewEngine(cfg Config, deps Deps, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("engine: fetcher is required")
	case deps.Parser == nil:
		return nil, errors.New("engine: parser is required")
	case deps.Store == nil:
		return nil, errors.New("engine: record store is required")
	case deps.Exporter == nil:
		return nil, errors.New("engine: exporter is required")
	case deps.Clock == nil:
		return nil, errors.New("engine: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("engine: id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, deps: deps, logger: logger.Named("engine")}, nil
}

// Run performs one crawl. It returns an error wrapping ErrRootPage, and writes
// nothing, when the first listing page cannot be fetched or parsed. Failures
// of later pages and authors are logged and summarized in the report.
// Run is meant to be called once per RecordStore.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	runID, err := e.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	report := Report{RunID: runID, StartedAt: e.deps.Clock.Now()}
	logger := e.logger.With(zap.String("run_id", runID))

	rootURL, err := ResolveURL(e.cfg.BaseURL, e.cfg.StartPath)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrRootPage, err)
	}
	logger.Info("crawl started",
		zap.String("root", rootURL),
		zap.Int("concurrency", e.cfg.Concurrency),
	)

	r := &run{
		Engine: e,
		gov:    NewGovernor(e.cfg.Concurrency, e.deps.Metrics, logger.Named("governor")),
		walker: logger.Named("walker"),
		resolv: logger.Named("resolver"),
	}
	root, err := r.gov.Schedule(ctx, "listing "+rootURL, func(ctx context.Context, slot *Slot) error {
		return r.walkListing(ctx, slot, rootURL, 1)
	})
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrRootPage, err)
	}
	r.gov.Wait()
	if err := root.Wait(); err != nil {
		logger.Error("root listing page failed", zap.String("url", rootURL), zap.Error(err))
		return report, fmt.Errorf("%w: %w", ErrRootPage, err)
	}

	snap := e.deps.Store.Snapshot()
	outputs, err := e.deps.Exporter.Export(ctx, snap)
	if err != nil {
		return report, fmt.Errorf("export: %w", err)
	}
	logger.Info("outputs written", zap.Strings("outputs", outputs))

	if e.deps.Sink != nil {
		if err := e.deps.Sink.Persist(ctx, runID, snap); err != nil {
			logger.Error("record sink failed", zap.Error(err))
			r.recordFailure(fmt.Errorf("record sink: %w", err))
		}
	}

	report.FinishedAt = e.deps.Clock.Now()
	report.Pages = r.pages.Load()
	report.FailedPages = r.failedPages.Load()
	report.Quotes = len(snap.Quotes)
	report.Authors = len(snap.Authors)
	report.AuthorSkips = r.skips.Load()
	report.FailedAuthors = make([]string, 0, len(snap.Failed))
	for _, f := range snap.Failed {
		report.FailedAuthors = append(report.FailedAuthors, f.Name)
	}
	report.Outputs = outputs

	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.Notify(ctx, report); err != nil {
			logger.Error("notify failed", zap.Error(err))
			r.recordFailure(fmt.Errorf("notify: %w", err))
		}
	}
	report.BranchErrors = r.failures()

	logger.Info("crawl complete",
		zap.Int64("pages", report.Pages),
		zap.Int64("failed_pages", report.FailedPages),
		zap.Int("quotes", report.Quotes),
		zap.Int("authors", report.Authors),
		zap.Int("failed_authors", len(report.FailedAuthors)),
		zap.Int64("author_skips", report.AuthorSkips),
		zap.Int64("peak_in_flight", r.gov.Peak()),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// run carries the state of a single Engine.Run call.
type run struct {
	*Engine
	gov    *Governor
	walker *zap.Logger
	resolv *zap.Logger

	pages       atomic.Int64
	failedPages atomic.Int64
	skips       atomic.Int64

	mu   sync.Mutex
	errs error
}

func (r *run) recordFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	multierr.AppendInto(&r.errs, err)
}

func (r *run) failures() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

// fetch issues one request under the per-request timeout and tags parse
// errors with the URL.
func (r *run) fetch(ctx context.Context, url string, kind FetchKind) ([]byte, error) {
	fctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	resp, err := r.deps.Fetcher.Fetch(fctx, FetchRequest{URL: url, Kind: kind})
	r.deps.Metrics.observeFetch(kind, err, resp.Duration)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// resolveLink turns an href from a page into an absolute URL the policy allows.
func (r *run) resolveLink(ref string) (string, error) {
	target, err := ResolveURL(r.cfg.BaseURL, ref)
	if err != nil {
		return "", &FetchError{Kind: FetchPermanent, URL: ref, Err: err}
	}
	if r.deps.Policy != nil && !r.deps.Policy.AllowFetch(target) {
		return "", &FetchError{Kind: FetchPermanent, URL: target, Err: ErrOutOfScope}
	}
	return target, nil
}

func tagParseError(err error, url string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.URL == "" {
		pe.URL = url
	}
	return err
}
