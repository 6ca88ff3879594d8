package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

type authorState int

const (
	authorClaimed authorState = iota
	authorResolved
	authorFailed
)

type authorEntry struct {
	state  authorState
	record crawler.Author
	reason string
}

// RecordStore holds the crawl-wide quote list and author map in memory. Each
// collection has its own lock.
type RecordStore struct {
	quotesMu sync.Mutex
	quotes   []crawler.Quote

	authorsMu sync.Mutex
	authors   map[string]*authorEntry
}

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		authors: make(map[string]*authorEntry),
	}
}

var _ crawler.RecordStore = (*RecordStore)(nil)

// AppendQuotes adds one page worth of quotes in a single critical section.
func (s *RecordStore) AppendQuotes(quotes ...crawler.Quote) {
	if len(quotes) == 0 {
		return
	}
	s.quotesMu.Lock()
	defer s.quotesMu.Unlock()
	s.quotes = append(s.quotes, quotes...)
}

// ClaimAuthor reserves name for the caller. It returns false when the name
// was already claimed, whatever its current state.
func (s *RecordStore) ClaimAuthor(name string) bool {
	s.authorsMu.Lock()
	defer s.authorsMu.Unlock()
	if _, exists := s.authors[name]; exists {
		return false
	}
	s.authors[name] = &authorEntry{state: authorClaimed}
	return true
}

// PopulateAuthor stores the resolved record for a claimed name.
func (s *RecordStore) PopulateAuthor(name string, author crawler.Author) error {
	s.authorsMu.Lock()
	defer s.authorsMu.Unlock()
	entry, err := s.claimedEntry(name)
	if err != nil {
		return err
	}
	entry.state = authorResolved
	entry.record = author
	return nil
}

// FailAuthor marks a claimed name as unresolvable.
func (s *RecordStore) FailAuthor(name string, reason error) error {
	s.authorsMu.Lock()
	defer s.authorsMu.Unlock()
	entry, err := s.claimedEntry(name)
	if err != nil {
		return err
	}
	entry.state = authorFailed
	if reason != nil {
		entry.reason = reason.Error()
	}
	return nil
}

// claimedEntry must be called with authorsMu held.
func (s *RecordStore) claimedEntry(name string) (*authorEntry, error) {
	entry, ok := s.authors[name]
	if !ok || entry.state != authorClaimed {
		return nil, fmt.Errorf("%w: %q", crawler.ErrNotClaimed, name)
	}
	return entry, nil
}

// Snapshot copies both collections. Quotes keep append order; resolved and
// failed authors are sorted by name. Names still in the claimed state are
// left out.
func (s *RecordStore) Snapshot() crawler.Snapshot {
	snap := crawler.Snapshot{
		Quotes:  s.copyQuotes(),
		Authors: []crawler.Author{},
		Failed:  []crawler.AuthorFailure{},
	}

	s.authorsMu.Lock()
	defer s.authorsMu.Unlock()
	for name, entry := range s.authors {
		switch entry.state {
		case authorResolved:
			snap.Authors = append(snap.Authors, entry.record)
		case authorFailed:
			snap.Failed = append(snap.Failed, crawler.AuthorFailure{Name: name, Reason: entry.reason})
		}
	}
	sort.Slice(snap.Authors, func(i, j int) bool { return snap.Authors[i].FullName < snap.Authors[j].FullName })
	sort.Slice(snap.Failed, func(i, j int) bool { return snap.Failed[i].Name < snap.Failed[j].Name })
	return snap
}

func (s *RecordStore) copyQuotes() []crawler.Quote {
	s.quotesMu.Lock()
	defer s.quotesMu.Unlock()
	out := make([]crawler.Quote, len(s.quotes))
	copy(out, s.quotes)
	return out
}
