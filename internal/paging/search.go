package paging

import (
	"context"
	"strings"
	"sync"

	"github.com/mmcdole/flickpick/internal/domain"
)

// SearchFunc fetches one page of results for a query
type SearchFunc func(ctx context.Context, query string, page int) (domain.MoviePage, error)

// SearchPager pages through search results for one query. Nothing is
// persisted; page numbers live in memory only.
type SearchPager struct {
	query  string
	search SearchFunc

	mu       sync.Mutex
	items    []domain.RemoteMovie
	prevPage *int
	nextPage *int
	started  bool
}

// NewSearchPager creates a pager for query
func NewSearchPager(query string, search SearchFunc) *SearchPager {
	return &SearchPager{query: strings.TrimSpace(query), search: search}
}

// Query returns the trimmed query
func (s *SearchPager) Query() string {
	return s.query
}

// LoadNext fetches the next page. It reports true when the sequence has
// ended. On error nothing changes and the next call retries the same page.
func (s *SearchPager) LoadNext(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.query == "" {
		s.started = true
		return true, nil
	}

	page := 1
	if s.started {
		if s.nextPage == nil {
			return true, nil
		}
		page = *s.nextPage
	}

	result, err := s.search(ctx, s.query, page)
	if err != nil {
		return false, err
	}

	s.started = true
	s.items = append(s.items, result.Results...)
	s.prevPage = nil
	if page > 1 {
		prev := page - 1
		s.prevPage = &prev
	}
	s.nextPage = nil
	if page < result.TotalPages {
		next := page + 1
		s.nextPage = &next
	}
	return s.nextPage == nil, nil
}

// Items returns every result loaded so far
func (s *SearchPager) Items() []domain.RemoteMovie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RemoteMovie, len(s.items))
	copy(out, s.items)
	return out
}

// EndOfData reports whether the last page has been loaded
func (s *SearchPager) EndOfData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query == "" || (s.started && s.nextPage == nil)
}

// PrevPage returns the page before the last loaded one, nil on page 1
func (s *SearchPager) PrevPage() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prevPage
}

// Reset drops loaded results so the next LoadNext starts at page 1
func (s *SearchPager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.prevPage = nil
	s.nextPage = nil
	s.started = false
}
