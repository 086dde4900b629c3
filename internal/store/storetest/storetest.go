// Package storetest holds the behavioural contract every domain.Store engine
// must satisfy. Engine packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
)

// OpenFunc opens a fresh, empty store for one test
type OpenFunc func(t *testing.T) domain.Store

// Run executes the contract suite against an engine
func Run(t *testing.T, open OpenFunc) {
	t.Run("items_ordered_by_page_then_insertion", func(t *testing.T) { testOrdering(t, open(t)) })
	t.Run("same_item_same_page_overwrites", func(t *testing.T) { testOverwrite(t, open(t)) })
	t.Run("same_item_other_page_is_kept", func(t *testing.T) { testCrossPageDuplicate(t, open(t)) })
	t.Run("delete_by_category_is_partitioned", func(t *testing.T) { testDeleteByCategory(t, open(t)) })
	t.Run("cursor_round_trip", func(t *testing.T) { testCursor(t, open(t)) })
	t.Run("update_error_rolls_back", func(t *testing.T) { testRollbackOnError(t, open(t)) })
	t.Run("update_panic_rolls_back", func(t *testing.T) { testRollbackOnPanic(t, open(t)) })
	t.Run("cancelled_context_rolls_back", func(t *testing.T) { testRollbackOnCancel(t, open(t)) })
	t.Run("readers_never_see_half_a_refresh", func(t *testing.T) { testRefreshIsAtomic(t, open(t)) })
	t.Run("subscribers_notified_after_commit", func(t *testing.T) { testNotify(t, open(t)) })
	t.Run("favourites", func(t *testing.T) { testFavourites(t, open(t)) })
	t.Run("genres_full_replace", func(t *testing.T) { testGenres(t, open(t)) })
}

// Item builds a ListItem for tests
func Item(category string, page, itemID int) domain.ListItem {
	return domain.ListItem{
		ItemID:   itemID,
		Title:    "Movie " + string(rune('A'+itemID%26)),
		Category: category,
		Page:     page,
		Rating:   7.5,
		Summary:  "summary",
	}
}

// ItemIDs extracts catalogue identifiers in order
func ItemIDs(items []domain.ListItem) []int {
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ItemID
	}
	return ids
}

func insert(t *testing.T, s domain.Store, items ...domain.ListItem) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx domain.PageTx) error {
		return tx.InsertItems(items)
	}))
}

func read(t *testing.T, s domain.Store, category string) []domain.ListItem {
	t.Helper()
	items, err := domain.ItemsByCategory(context.Background(), s, category)
	require.NoError(t, err)
	return items
}

func testOrdering(t *testing.T, s domain.Store) {
	// Page 2 written before page 1 still sorts after it
	insert(t, s, Item("popular", 2, 30), Item("popular", 2, 10))
	insert(t, s, Item("popular", 1, 50), Item("popular", 1, 20))

	items := read(t, s, "popular")
	assert.Equal(t, []int{50, 20, 30, 10}, ItemIDs(items))

	for i := 1; i < len(items); i++ {
		if items[i].Page == items[i-1].Page {
			assert.Greater(t, items[i].LocalID, items[i-1].LocalID)
		}
	}
	assert.Empty(t, read(t, s, "top_rated"))
}

func testOverwrite(t *testing.T, s domain.Store) {
	insert(t, s, Item("popular", 1, 1), Item("popular", 1, 2))
	before := read(t, s, "popular")

	updated := Item("popular", 1, 1)
	updated.Title = "Renamed"
	insert(t, s, updated)

	after := read(t, s, "popular")
	require.Len(t, after, 2)
	assert.Equal(t, []int{1, 2}, ItemIDs(after))
	assert.Equal(t, "Renamed", after[0].Title)
	assert.Equal(t, before[0].LocalID, after[0].LocalID)
}

func testCrossPageDuplicate(t *testing.T, s domain.Store) {
	insert(t, s, Item("popular", 1, 7), Item("popular", 2, 7))
	assert.Equal(t, []int{7, 7}, ItemIDs(read(t, s, "popular")))
}

func testDeleteByCategory(t *testing.T, s domain.Store) {
	insert(t, s, Item("popular", 1, 1), Item("genre_28", 1, 1))

	require.NoError(t, s.Update(context.Background(), func(tx domain.PageTx) error {
		return tx.DeleteItemsByCategory("popular")
	}))

	assert.Empty(t, read(t, s, "popular"))
	assert.Equal(t, []int{1}, ItemIDs(read(t, s, "genre_28")))

	// Deleting an unknown category is not an error
	require.NoError(t, s.Update(context.Background(), func(tx domain.PageTx) error {
		return tx.DeleteItemsByCategory("never_seen")
	}))
}

func testCursor(t *testing.T, s domain.Store) {
	ctx := context.Background()

	cursor, err := domain.CursorFor(ctx, s, "popular")
	require.NoError(t, err)
	assert.Nil(t, cursor)

	next := 3
	require.NoError(t, s.Update(ctx, func(tx domain.PageTx) error {
		return tx.PutCursor(domain.Cursor{Category: "popular", NextPage: &next})
	}))
	cursor, err = domain.CursorFor(ctx, s, "popular")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.NotNil(t, cursor.NextPage)
	assert.Equal(t, 3, *cursor.NextPage)

	require.NoError(t, s.Update(ctx, func(tx domain.PageTx) error {
		return tx.PutCursor(domain.Cursor{Category: "popular"})
	}))
	cursor, err = domain.CursorFor(ctx, s, "popular")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, cursor.EndOfData())

	require.NoError(t, s.Update(ctx, func(tx domain.PageTx) error {
		return tx.DeleteCursor("popular")
	}))
	cursor, err = domain.CursorFor(ctx, s, "popular")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func seed(t *testing.T, s domain.Store) {
	t.Helper()
	next := 2
	require.NoError(t, s.Update(context.Background(), func(tx domain.PageTx) error {
		if err := tx.InsertItems([]domain.ListItem{Item("popular", 1, 1), Item("popular", 1, 2)}); err != nil {
			return err
		}
		return tx.PutCursor(domain.Cursor{Category: "popular", NextPage: &next})
	}))
}

func assertSeeded(t *testing.T, s domain.Store) {
	t.Helper()
	assert.Equal(t, []int{1, 2}, ItemIDs(read(t, s, "popular")))
	cursor, err := domain.CursorFor(context.Background(), s, "popular")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.NotNil(t, cursor.NextPage)
	assert.Equal(t, 2, *cursor.NextPage)
}

func clearAndWrite(tx domain.PageTx) error {
	if err := tx.DeleteItemsByCategory("popular"); err != nil {
		return err
	}
	if err := tx.DeleteCursor("popular"); err != nil {
		return err
	}
	return tx.InsertItems([]domain.ListItem{Item("popular", 1, 99)})
}

func testRollbackOnError(t *testing.T, s domain.Store) {
	seed(t, s)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(tx domain.PageTx) error {
		if err := clearAndWrite(tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assertSeeded(t, s)
}

func testRollbackOnPanic(t *testing.T, s domain.Store) {
	seed(t, s)

	assert.Panics(t, func() {
		_ = s.Update(context.Background(), func(tx domain.PageTx) error {
			if err := clearAndWrite(tx); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	})
	assertSeeded(t, s)
}

func testRollbackOnCancel(t *testing.T, s domain.Store) {
	seed(t, s)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Update(ctx, func(tx domain.PageTx) error {
		if err := clearAndWrite(tx); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assertSeeded(t, s)

	// Already cancelled: nothing runs
	called := false
	err = s.Update(ctx, func(tx domain.PageTx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// generation writes what one refresh commits: generation 0 holds pages 1 and
// 2, later generations only page 1. Item ids encode the generation.
func generation(gen int) ([]domain.ListItem, domain.Cursor) {
	pages, next := 1, 2
	if gen == 0 {
		pages, next = 2, 3
	}
	var items []domain.ListItem
	for page := 1; page <= pages; page++ {
		for i := 0; i < 5; i++ {
			items = append(items, Item("popular", page, gen*1000+page*10+i))
		}
	}
	return items, domain.Cursor{Category: "popular", NextPage: &next}
}

func checkGeneration(items []domain.ListItem, cursor *domain.Cursor) error {
	if len(items) == 0 || cursor == nil || cursor.NextPage == nil {
		return fmt.Errorf("empty category: %d items, cursor %v", len(items), cursor)
	}
	gen := items[0].ItemID / 1000
	want, wantCursor := generation(gen)
	if len(items) != len(want) {
		return fmt.Errorf("generation %d: read %d items, want %d", gen, len(items), len(want))
	}
	for _, item := range items {
		if item.ItemID/1000 != gen {
			return fmt.Errorf("mixed generations %d and %d", gen, item.ItemID/1000)
		}
	}
	if *cursor.NextPage != *wantCursor.NextPage {
		return fmt.Errorf("generation %d: cursor %d, want %d", gen, *cursor.NextPage, *wantCursor.NextPage)
	}
	return nil
}

func testRefreshIsAtomic(t *testing.T, s domain.Store) {
	ctx := context.Background()
	items, cursor := generation(0)
	require.NoError(t, s.Update(ctx, func(tx domain.PageTx) error {
		if err := tx.InsertItems(items); err != nil {
			return err
		}
		return tx.PutCursor(cursor)
	}))

	done := make(chan struct{})
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		bad   error
		reads int
	)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				var (
					got    []domain.ListItem
					cursor *domain.Cursor
				)
				err := s.View(ctx, func(tx domain.PageTx) error {
					var err error
					if got, err = tx.ItemsByCategory("popular"); err != nil {
						return err
					}
					cursor, err = tx.GetCursor("popular")
					return err
				})
				if err == nil {
					err = checkGeneration(got, cursor)
				}
				mu.Lock()
				reads++
				if err != nil && bad == nil {
					bad = err
				}
				mu.Unlock()
			}
		}()
	}

	for gen := 1; gen <= 50; gen++ {
		items, cursor := generation(gen)
		require.NoError(t, s.Update(ctx, func(tx domain.PageTx) error {
			if err := tx.DeleteItemsByCategory("popular"); err != nil {
				return err
			}
			if err := tx.DeleteCursor("popular"); err != nil {
				return err
			}
			if err := tx.InsertItems(items); err != nil {
				return err
			}
			return tx.PutCursor(cursor)
		}))
	}
	close(done)
	wg.Wait()

	assert.NoError(t, bad)
	assert.Positive(t, reads)
	final := read(t, s, "popular")
	finalCursor, err := domain.CursorFor(ctx, s, "popular")
	require.NoError(t, err)
	require.NoError(t, checkGeneration(final, finalCursor))
	assert.Equal(t, 50, final[0].ItemID/1000)
}

func testNotify(t *testing.T, s domain.Store) {
	popular, cancelPopular := s.Subscribe("popular")
	defer cancelPopular()
	genre, cancelGenre := s.Subscribe("genre_12")
	defer cancelGenre()

	insert(t, s, Item("popular", 1, 1))
	insert(t, s, Item("popular", 1, 2))

	select {
	case <-popular:
	case <-time.After(time.Second):
		t.Fatal("expected popular notification")
	}
	// Two commits coalesce into at most one pending signal
	select {
	case <-popular:
		t.Fatal("signals should coalesce")
	default:
	}
	select {
	case <-genre:
		t.Fatal("other category must not be notified")
	default:
	}

	// Failed transactions do not notify
	_ = s.Update(context.Background(), func(tx domain.PageTx) error {
		if err := tx.InsertItems([]domain.ListItem{Item("popular", 1, 3)}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	select {
	case <-popular:
		t.Fatal("rolled back transaction must not notify")
	default:
	}

	// Cancelled subscriptions stop receiving
	cancelPopular()
	insert(t, s, Item("popular", 1, 4))
	select {
	case <-popular:
		t.Fatal("cancelled subscription must not be notified")
	default:
	}
}

func testFavourites(t *testing.T, s domain.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutFavourite(ctx, domain.Favourite{MovieID: 1, Title: "Old", AddedAt: base}))
	require.NoError(t, s.PutFavourite(ctx, domain.Favourite{MovieID: 2, Title: "New", AddedAt: base.Add(time.Hour)}))

	favs, err := s.Favourites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, 2, favs[0].MovieID)
	assert.Equal(t, 1, favs[1].MovieID)

	ok, err := s.IsFavourite(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.DeleteFavourite(ctx, 1))
	ok, err = s.IsFavourite(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testGenres(t *testing.T, s domain.Store) {
	ctx := context.Background()

	_, ok, err := s.Genres(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReplaceGenres(ctx, []domain.Genre{{ID: 28, Name: "Action"}, {ID: 18, Name: "Drama"}}))
	require.NoError(t, s.ReplaceGenres(ctx, []domain.Genre{{ID: 35, Name: "Comedy"}, {ID: 12, Name: "Adventure"}}))

	genres, ok, err := s.Genres(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []domain.Genre{{ID: 12, Name: "Adventure"}, {ID: 35, Name: "Comedy"}}, genres)
}
