package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// walkListing handles one listing page. The slot covers fetch and parse only;
// it is released before children are scheduled so that joining them never
// holds capacity. The returned error describes this page alone. Child failures
// are recorded on the run.
func (r *run) walkListing(ctx context.Context, slot *Slot, pageURL string, depth int) error {
	logger := r.walker.With(zap.String("url", pageURL), zap.Int("page", depth))
	logger.Debug("fetch start")

	page, err := r.loadListing(ctx, pageURL)
	slot.Release()
	if err != nil {
		r.failedPages.Add(1)
		logger.Error("listing page failed", zap.Error(err))
		return fmt.Errorf("listing %s: %w", pageURL, err)
	}
	r.pages.Add(1)

	r.deps.Store.AppendQuotes(page.Quotes...)
	r.deps.Metrics.addQuotes(len(page.Quotes))
	logger.Debug("page parsed",
		zap.Int("quotes", len(page.Quotes)),
		zap.Bool("has_next", page.Next != ""),
	)

	children := make([]*Task, 0, len(page.Refs)+1)
	for _, ref := range page.Refs {
		task, err := r.gov.Schedule(ctx, "author "+ref.Name, func(ctx context.Context, slot *Slot) error {
			return r.resolveAuthor(ctx, slot, ref)
		})
		if err != nil {
			logger.Warn("author not scheduled", zap.String("author", ref.Name), zap.Error(err))
			r.recordFailure(err)
			continue
		}
		children = append(children, task)
	}

	if page.Next != "" {
		if r.cfg.MaxPages > 0 && depth >= r.cfg.MaxPages {
			logger.Info("page limit reached", zap.Int("max_pages", r.cfg.MaxPages))
		} else if task, err := r.scheduleNext(ctx, page.Next, depth+1); err != nil {
			logger.Warn("next page not scheduled", zap.String("next", page.Next), zap.Error(err))
			r.recordFailure(err)
		} else {
			children = append(children, task)
		}
	}

	for _, child := range children {
		if err := child.Wait(); err != nil {
			r.recordFailure(err)
		}
	}
	return nil
}

func (r *run) scheduleNext(ctx context.Context, ref string, depth int) (*Task, error) {
	nextURL, err := r.resolveLink(ref)
	if err != nil {
		return nil, err
	}
	return r.gov.Schedule(ctx, "listing "+nextURL, func(ctx context.Context, slot *Slot) error {
		return r.walkListing(ctx, slot, nextURL, depth)
	})
}

func (r *run) loadListing(ctx context.Context, pageURL string) (ListingPage, error) {
	body, err := r.fetch(ctx, pageURL, FetchListing)
	if err != nil {
		return ListingPage{}, err
	}
	page, err := r.deps.Parser.ParseListing(body)
	if err != nil {
		return ListingPage{}, tagParseError(err, pageURL)
	}
	return page, nil
}
