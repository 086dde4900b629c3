package domain

import "context"

// PageFetcher fetches one page of a paginated catalogue list.
// Errors are either transport failures (wrapping ErrUnreachable or a context
// error) or service failures (*ServiceError).
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (MoviePage, error)
}

// PageFetcherFunc adapts a function to PageFetcher
type PageFetcherFunc func(ctx context.Context, page int) (MoviePage, error)

// FetchPage implements PageFetcher
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) (MoviePage, error) {
	return f(ctx, page)
}

// CatalogClient: Network operations (implemented by the tmdb client)
type CatalogClient interface {
	GetPopular(ctx context.Context, page int) (MoviePage, error)
	GetTopRated(ctx context.Context, page int) (MoviePage, error)
	DiscoverByGenre(ctx context.Context, genreID, page int) (MoviePage, error)
	SearchMovies(ctx context.Context, query string, page int) (MoviePage, error)
	GetMovieDetail(ctx context.Context, movieID int) (*MovieDetail, error)
	GetGenres(ctx context.Context) ([]Genre, error)
}

// DetailCache keeps movie details for a limited time. GetDetail returns
// ErrCacheMiss when nothing usable is stored.
type DetailCache interface {
	GetDetail(ctx context.Context, movieID int) (*MovieDetail, error)
	PutDetail(ctx context.Context, detail MovieDetail) error
}
