package paging

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/store"
)

// fakeFetcher serves canned pages and records every call
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[int]domain.MoviePage
	errs   map[int]error
	calls  []int
	before func(ctx context.Context, page int) error
}

func newFakeFetcher(totalPages, perPage int) *fakeFetcher {
	f := &fakeFetcher{pages: make(map[int]domain.MoviePage), errs: make(map[int]error)}
	for p := 1; p <= totalPages; p++ {
		f.pages[p] = moviePage(p, totalPages, perPage)
	}
	return f
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page int) (domain.MoviePage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	before := f.before
	err := f.errs[page]
	result, ok := f.pages[page]
	f.mu.Unlock()

	if before != nil {
		if err := before(ctx, page); err != nil {
			return domain.MoviePage{}, err
		}
	}
	if err != nil {
		return domain.MoviePage{}, err
	}
	if !ok {
		return domain.MoviePage{}, &domain.ServiceError{StatusCode: 422, Message: "page out of range", Err: domain.ErrInvalidPage}
	}
	return result, nil
}

func (f *fakeFetcher) setErr(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, page)
		return
	}
	f.errs[page] = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) pagesRequested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// moviePage builds page p with ids p*100+1 .. p*100+perPage
func moviePage(p, totalPages, perPage int) domain.MoviePage {
	results := make([]domain.RemoteMovie, perPage)
	for i := range results {
		id := p*100 + i + 1
		results[i] = domain.RemoteMovie{ID: id, Title: "Movie", VoteAverage: 7, ReleaseDate: "2021-01-01"}
	}
	return domain.MoviePage{Page: p, Results: results, TotalPages: totalPages, TotalResults: totalPages * perPage}
}

func pageIDs(p, perPage int) []int {
	ids := make([]int, perPage)
	for i := range ids {
		ids[i] = p*100 + i + 1
	}
	return ids
}

func openStore(t *testing.T) *store.PageStore {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "paging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func itemIDs(items []domain.ListItem) []int {
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ItemID
	}
	return ids
}

func readItems(t *testing.T, s domain.Store, category string) []domain.ListItem {
	t.Helper()
	items, err := domain.ItemsByCategory(context.Background(), s, category)
	require.NoError(t, err)
	return items
}

func readCursor(t *testing.T, s domain.Store, category string) *domain.Cursor {
	t.Helper()
	cursor, err := domain.CursorFor(context.Background(), s, category)
	require.NoError(t, err)
	return cursor
}
