// Package catalog is the repository facade over the catalogue client and
// the local store: paged category lists, search, movie detail, genres and
// favourites.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/metrics"
	"github.com/mmcdole/flickpick/internal/paging"
)

// Poster sizes
const (
	PosterSizeList   = "w342"
	PosterSizeDetail = "w500"
)

// ErrUnknownCategory is returned for category names with no fetcher
var ErrUnknownCategory = errors.New("unknown category")

// Options configures the service
type Options struct {
	ImageBaseURL string
	Pager        paging.PagerConfig
	DetailCache  domain.DetailCache // Optional
}

// Service wires categories to fetchers and owns the non-paged features.
type Service struct {
	client  domain.CatalogClient
	store   domain.Store
	metrics *metrics.Recorder
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a catalog service. rec may be nil.
func NewService(client domain.CatalogClient, store domain.Store, rec *metrics.Recorder, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:  client,
		store:   store,
		metrics: rec,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// === Paged lists ===

// Fetcher returns the page fetcher for a category name
func (s *Service) Fetcher(category string) (domain.PageFetcher, error) {
	switch category {
	case domain.CategoryPopular:
		return domain.PageFetcherFunc(s.client.GetPopular), nil
	case domain.CategoryTopRated:
		return domain.PageFetcherFunc(s.client.GetTopRated), nil
	}

	if id, ok := strings.CutPrefix(category, "genre_"); ok {
		genreID, err := strconv.Atoi(id)
		if err == nil && genreID > 0 {
			return domain.PageFetcherFunc(func(ctx context.Context, page int) (domain.MoviePage, error) {
				return s.client.DiscoverByGenre(ctx, genreID, page)
			}), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// Mediator returns a paging mediator for a category
func (s *Service) Mediator(category string) (*paging.Mediator, error) {
	fetcher, err := s.Fetcher(category)
	if err != nil {
		return nil, err
	}
	return paging.NewMediator(category, s.store, fetcher, s.metrics, s.logger), nil
}

// Pager returns an unstarted pager for a category
func (s *Service) Pager(category string) (*paging.Pager, error) {
	m, err := s.Mediator(category)
	if err != nil {
		return nil, err
	}
	return paging.NewPager(m, s.store, s.opts.Pager, s.logger), nil
}

// Popular returns the pager for popular movies
func (s *Service) Popular() *paging.Pager {
	p, _ := s.Pager(domain.CategoryPopular)
	return p
}

// TopRated returns the pager for top rated movies
func (s *Service) TopRated() *paging.Pager {
	p, _ := s.Pager(domain.CategoryTopRated)
	return p
}

// ByGenre returns the pager for one genre
func (s *Service) ByGenre(genreID int) (*paging.Pager, error) {
	return s.Pager(domain.GenreCategory(genreID))
}

// SyncResult summarizes a non-interactive sync
type SyncResult struct {
	Category  string
	Pages     int // Pages fetched
	Items     []domain.ListItem
	EndOfData bool
}

// Sync refreshes a category and appends up to pages-1 more pages.
func (s *Service) Sync(ctx context.Context, category string, pages int) (SyncResult, error) {
	result := SyncResult{Category: category}
	if pages < 1 {
		pages = 1
	}

	m, err := s.Mediator(category)
	if err != nil {
		return result, err
	}

	loadType := domain.LoadRefresh
	for result.Pages < pages {
		outcome := m.Load(ctx, loadType, domain.PagingState{LoadedCount: len(result.Items), Anchor: -1})
		if outcome.Failed() {
			return result, outcome.Err
		}
		result.Pages++
		result.EndOfData = outcome.EndOfData
		if outcome.EndOfData {
			break
		}
		loadType = domain.LoadAppend
	}

	items, err := domain.ItemsByCategory(ctx, s.store, category)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", category, err)
	}
	result.Items = items
	s.logger.Info("synced category", "category", category, "pages", result.Pages, "items", len(items))
	return result, nil
}

// Search returns a network-only pager for query
func (s *Service) Search(query string) *paging.SearchPager {
	return paging.NewSearchPager(query, s.client.SearchMovies)
}

// === Presentation projections ===

// PosterURL builds an image URL, empty when there is no poster
func (s *Service) PosterURL(size, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return strings.TrimRight(s.opts.ImageBaseURL, "/") + "/" + size + posterPath
}

// MovieFromItem projects a stored list item
func (s *Service) MovieFromItem(item domain.ListItem) domain.Movie {
	return domain.Movie{
		ID:          item.ItemID,
		Title:       item.Title,
		PosterURL:   s.PosterURL(PosterSizeList, item.PosterPath),
		Rating:      item.Rating,
		ReleaseYear: domain.ReleaseYear(item.ReleaseDate),
		Overview:    item.Summary,
	}
}

// MovieFromRemote projects a search result
func (s *Service) MovieFromRemote(m domain.RemoteMovie) domain.Movie {
	return domain.Movie{
		ID:          m.ID,
		Title:       m.Title,
		PosterURL:   s.PosterURL(PosterSizeList, m.PosterPath),
		Rating:      m.VoteAverage,
		ReleaseYear: domain.ReleaseYear(m.ReleaseDate),
		Overview:    m.Overview,
	}
}

// === Detail ===

// MovieDetail fetches one movie and marks whether it is a favourite. The
// detail cache is consulted first when one is configured.
func (s *Service) MovieDetail(ctx context.Context, movieID int) domain.State[domain.MovieDetail] {
	detail := s.cachedDetail(ctx, movieID)
	if detail == nil {
		fetched, err := s.client.GetMovieDetail(ctx, movieID)
		if err != nil {
			s.logger.Error("failed to fetch movie detail", "movieID", movieID, "error", err)
			return domain.StateError[domain.MovieDetail](err.Error())
		}
		detail = fetched
		if s.opts.DetailCache != nil {
			if err := s.opts.DetailCache.PutDetail(ctx, *detail); err != nil {
				s.logger.Warn("failed to cache movie detail", "movieID", movieID, "error", err)
			}
		}
	}

	detail.PosterURL = s.PosterURL(PosterSizeDetail, detail.PosterPath)
	if fav, err := s.store.IsFavourite(ctx, movieID); err != nil {
		s.logger.Warn("failed to read favourite flag", "movieID", movieID, "error", err)
	} else {
		detail.IsFavourite = fav
	}
	return domain.StateSuccess(*detail)
}

func (s *Service) cachedDetail(ctx context.Context, movieID int) *domain.MovieDetail {
	if s.opts.DetailCache == nil {
		return nil
	}
	detail, err := s.opts.DetailCache.GetDetail(ctx, movieID)
	switch {
	case err == nil:
		s.metrics.ObserveDetailCache(metrics.CacheHit)
		return detail
	case errors.Is(err, domain.ErrCacheMiss):
		s.metrics.ObserveDetailCache(metrics.CacheMiss)
	default:
		s.metrics.ObserveDetailCache(metrics.CacheError)
		s.logger.Warn("detail cache lookup failed", "movieID", movieID, "error", err)
	}
	return nil
}

// === Genres ===

// Genres fetches the genre list and replaces the cache. When the fetch
// fails the cached list is returned if there is one.
func (s *Service) Genres(ctx context.Context) domain.State[[]domain.Genre] {
	genres, fetchErr := s.client.GetGenres(ctx)
	if fetchErr == nil {
		if err := s.store.ReplaceGenres(ctx, genres); err != nil {
			s.logger.Error("failed to cache genres", "error", err)
		}
		sorted := append([]domain.Genre(nil), genres...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		return domain.StateSuccess(sorted)
	}

	s.logger.Warn("failed to fetch genres, trying cache", "error", fetchErr)
	cached, ok, err := s.store.Genres(ctx)
	if err != nil || !ok {
		return domain.StateError[[]domain.Genre](fetchErr.Error())
	}
	return domain.StateSuccess(cached)
}

// LookupGenre fuzzy-matches a genre name against the cached list
func (s *Service) LookupGenre(ctx context.Context, name string) (domain.Genre, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Genre{}, false, nil
	}

	genres, ok, err := s.store.Genres(ctx)
	if err != nil {
		return domain.Genre{}, false, err
	}
	if !ok {
		return domain.Genre{}, false, nil
	}

	names := make([]string, len(genres))
	for i, g := range genres {
		names[i] = g.Name
	}
	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) == 0 {
		return domain.Genre{}, false, nil
	}
	sort.Sort(ranks)
	return genres[ranks[0].OriginalIndex], true, nil
}

// === Favourites ===

// Favourites lists saved movies, newest first
func (s *Service) Favourites(ctx context.Context) ([]domain.Movie, error) {
	favs, err := s.store.Favourites(ctx)
	if err != nil {
		return nil, err
	}
	movies := make([]domain.Movie, 0, len(favs))
	for _, f := range favs {
		movies = append(movies, domain.Movie{
			ID:          f.MovieID,
			Title:       f.Title,
			PosterURL:   s.PosterURL(PosterSizeList, f.PosterPath),
			Rating:      f.Rating,
			ReleaseYear: domain.ReleaseYear(f.ReleaseDate),
			Overview:    f.Overview,
			IsFavourite: true,
		})
	}
	return movies, nil
}

// ToggleFavourite saves or removes a movie and returns the new state
func (s *Service) ToggleFavourite(ctx context.Context, detail domain.MovieDetail) (bool, error) {
	isFav, err := s.store.IsFavourite(ctx, detail.ID)
	if err != nil {
		return false, err
	}
	if isFav {
		if err := s.store.DeleteFavourite(ctx, detail.ID); err != nil {
			return true, err
		}
		s.logger.Debug("removed favourite", "movieID", detail.ID)
		return false, nil
	}

	fav := domain.Favourite{
		MovieID:     detail.ID,
		Title:       detail.Title,
		PosterPath:  detail.PosterPath,
		Rating:      detail.Rating,
		ReleaseDate: detail.ReleaseDate,
		Overview:    detail.Overview,
		AddedAt:     s.now(),
	}
	if err := s.store.PutFavourite(ctx, fav); err != nil {
		return false, err
	}
	s.logger.Debug("added favourite", "movieID", detail.ID)
	return true, nil
}

// IsFavourite reports whether a movie is saved
func (s *Service) IsFavourite(ctx context.Context, movieID int) (bool, error) {
	return s.store.IsFavourite(ctx, movieID)
}
