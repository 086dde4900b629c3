package domain

import "context"

// PageTx is a transaction against the page store and cursor store.
// All reads and writes inside one PageTx commit or roll back together.
type PageTx interface {
	// === Cursor Store ===
	GetCursor(category string) (*Cursor, error) // nil when no row exists
	PutCursor(cursor Cursor) error
	DeleteCursor(category string) error

	// === Page Store ===
	// InsertItems stores items under their (Category, Page). An item whose
	// ItemID already exists in the same category and page overwrites it in place.
	InsertItems(items []ListItem) error
	DeleteItemsByCategory(category string) error
	ItemsByCategory(category string) ([]ListItem, error) // ordered by (Page, LocalID)
}

// Store handles the local persisted cache.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx PageTx) error) error

	// Update runs fn in a write transaction. The transaction commits when fn
	// returns nil and rolls back when fn returns an error, panics, or ctx is
	// cancelled before commit.
	Update(ctx context.Context, fn func(tx PageTx) error) error

	// Subscribe returns a channel signalled after every committed Update that
	// touched category. Signals coalesce; cancel releases the subscription.
	Subscribe(category string) (ch <-chan struct{}, cancel func())

	// === Favourites ===
	Favourites(ctx context.Context) ([]Favourite, error) // newest first
	PutFavourite(ctx context.Context, fav Favourite) error
	DeleteFavourite(ctx context.Context, movieID int) error
	IsFavourite(ctx context.Context, movieID int) (bool, error)

	// === Genres (full-replace cache) ===
	Genres(ctx context.Context) ([]Genre, bool, error) // ordered by name
	ReplaceGenres(ctx context.Context, genres []Genre) error

	Close() error
}

// ItemsByCategory reads a category's items in a read-only transaction
func ItemsByCategory(ctx context.Context, s Store, category string) ([]ListItem, error) {
	var items []ListItem
	err := s.View(ctx, func(tx PageTx) error {
		var err error
		items, err = tx.ItemsByCategory(category)
		return err
	})
	return items, err
}

// CursorFor reads a category's cursor in a read-only transaction
func CursorFor(ctx context.Context, s Store, category string) (*Cursor, error) {
	var cursor *Cursor
	err := s.View(ctx, func(tx PageTx) error {
		var err error
		cursor, err = tx.GetCursor(category)
		return err
	})
	return cursor, err
}
