package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/flickpick/internal/catalog"
	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/paging"
)

// requestTimeout bounds one-shot network commands
const requestTimeout = 30 * time.Second

// StartPagerCmd starts a category pager
func StartPagerCmd(ctx context.Context, p *paging.Pager) tea.Cmd {
	return func() tea.Msg {
		if err := p.Start(ctx); err != nil {
			return ErrMsg{Err: err, Context: "start " + p.Category()}
		}
		return PagerStartedMsg{Category: p.Category()}
	}
}

// WaitForSnapshotCmd blocks until the pager publishes a new snapshot
func WaitForSnapshotCmd(p *paging.Pager) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-p.Updates()
		if !ok {
			return PagerStoppedMsg{Category: p.Category()}
		}
		return SnapshotMsg{Category: p.Category(), Snapshot: snap}
	}
}

// LoadSearchPageCmd loads the next page of a search
func LoadSearchPageCmd(ctx context.Context, svc *catalog.Service, sp *paging.SearchPager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		_, err := sp.LoadNext(ctx)
		remote := sp.Items()
		msg := SearchResultsMsg{
			Pager:     sp,
			Query:     sp.Query(),
			EndOfData: sp.EndOfData(),
			Err:       err,
		}
		for _, m := range remote {
			msg.Movies = append(msg.Movies, svc.MovieFromRemote(m))
		}
		return msg
	}
}

// LoadDetailCmd loads full metadata for a movie
func LoadDetailCmd(ctx context.Context, svc *catalog.Service, movieID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return DetailMsg{MovieID: movieID, State: svc.MovieDetail(ctx, movieID)}
	}
}

// ToggleFavouriteCmd saves or removes the movie in the detail pane
func ToggleFavouriteCmd(ctx context.Context, svc *catalog.Service, detail domain.MovieDetail) tea.Cmd {
	return func() tea.Msg {
		isFav, err := svc.ToggleFavourite(ctx, detail)
		if err != nil {
			return ErrMsg{Err: err, Context: "toggle favourite"}
		}
		return FavouriteToggledMsg{MovieID: detail.ID, IsFavourite: isFav}
	}
}

// LoadFavouritesCmd reads the saved movies
func LoadFavouritesCmd(ctx context.Context, svc *catalog.Service) tea.Cmd {
	return func() tea.Msg {
		movies, err := svc.Favourites(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "load favourites"}
		}
		return FavouritesLoadedMsg{Movies: movies}
	}
}

// OpenMovieCmd opens a movie's web page
func OpenMovieCmd(opener MovieOpener, movieID int) tea.Cmd {
	return func() tea.Msg {
		if err := opener.OpenMovie(movieID); err != nil {
			return ErrMsg{Err: err, Context: "open movie"}
		}
		return nil
	}
}
