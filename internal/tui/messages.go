package tui

import (
	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/paging"
)

// PagerStartedMsg is sent once a category pager is running
type PagerStartedMsg struct {
	Category string
}

// SnapshotMsg carries the latest view of a paged category
type SnapshotMsg struct {
	Category string
	Snapshot paging.Snapshot
}

// PagerStoppedMsg is sent when a pager's update channel closes
type PagerStoppedMsg struct {
	Category string
}

// SearchQueryMsg is sent when the debounced search input settles
type SearchQueryMsg struct {
	Query string
}

// SearchResultsMsg carries the items loaded for a search query
type SearchResultsMsg struct {
	Pager     *paging.SearchPager
	Query     string
	Movies    []domain.Movie
	EndOfData bool
	Err       error
}

// DetailMsg carries the movie detail load result
type DetailMsg struct {
	MovieID int
	State   domain.State[domain.MovieDetail]
}

// FavouriteToggledMsg is sent after a favourite is saved or removed
type FavouriteToggledMsg struct {
	MovieID     int
	IsFavourite bool
}

// FavouritesLoadedMsg carries the saved movies
type FavouritesLoadedMsg struct {
	Movies []domain.Movie
}

// ErrMsg is sent when an error occurs
type ErrMsg struct {
	Err     error
	Context string
}

func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}
