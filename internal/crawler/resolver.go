package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// resolveAuthor fetches and stores the biography behind ref unless another
// task has already claimed the name.
func (r *run) resolveAuthor(ctx context.Context, slot *Slot, ref AuthorRef) error {
	logger := r.resolv.With(zap.String("author", ref.Name))
	if !r.deps.Store.ClaimAuthor(ref.Name) {
		r.skips.Add(1)
		r.deps.Metrics.authorSkip()
		logger.Debug("author already processed")
		return nil
	}

	author, err := r.loadAuthor(ctx, ref)
	slot.Release()
	if err != nil {
		r.deps.Metrics.authorResult("failed")
		logger.Warn("author rejected", zap.String("href", ref.Href), zap.Error(err))
		if ferr := r.deps.Store.FailAuthor(ref.Name, err); ferr != nil {
			logger.Error("mark author failed", zap.Error(ferr))
		}
		return fmt.Errorf("author %q: %w", ref.Name, err)
	}
	if err := r.deps.Store.PopulateAuthor(ref.Name, author); err != nil {
		return fmt.Errorf("author %q: %w", ref.Name, err)
	}
	r.deps.Metrics.authorResult("resolved")
	logger.Debug("author resolved")
	return nil
}

func (r *run) loadAuthor(ctx context.Context, ref AuthorRef) (Author, error) {
	authorURL, err := r.resolveLink(ref.Href)
	if err != nil {
		return Author{}, err
	}
	body, err := r.fetch(ctx, authorURL, FetchAuthor)
	if err != nil {
		return Author{}, err
	}
	details, err := r.deps.Parser.ParseAuthor(body)
	if err != nil {
		return Author{}, tagParseError(err, authorURL)
	}
	return NewAuthor(ref.Name, details, r.deps.Clock.Now())
}
