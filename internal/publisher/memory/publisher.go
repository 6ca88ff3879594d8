// Package memory contains an in-memory Notifier for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Notifier stores every report it is given.
type Notifier struct {
	mu      sync.RWMutex
	reports []crawler.Report
}

var _ crawler.Notifier = (*Notifier)(nil)

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the report.
func (n *Notifier) Notify(_ context.Context, report crawler.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return nil
}

// Reports returns the recorded reports.
func (n *Notifier) Reports() []crawler.Report {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]crawler.Report, len(n.reports))
	copy(out, n.reports)
	return out
}
