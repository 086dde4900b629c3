package tmdb

import (
	"strings"

	"github.com/mmcdole/flickpick/internal/domain"
)

// MapMoviePage converts a list response to a domain page
func MapMoviePage(resp MovieListResponse) domain.MoviePage {
	results := make([]domain.RemoteMovie, 0, len(resp.Results))
	for _, m := range resp.Results {
		results = append(results, domain.RemoteMovie{
			ID:          m.ID,
			Title:       m.Title,
			PosterPath:  deref(m.PosterPath),
			VoteAverage: m.VoteAverage,
			ReleaseDate: deref(m.ReleaseDate),
			Overview:    m.Overview,
		})
	}
	return domain.MoviePage{
		Page:         resp.Page,
		Results:      results,
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
	}
}

// MapMovieDetail converts a detail response. PosterURL is left for the
// caller, which knows the image base URL.
func MapMovieDetail(d MovieDetailDTO) *domain.MovieDetail {
	genres := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		genres = append(genres, g.Name)
	}

	detail := &domain.MovieDetail{
		ID:          d.ID,
		Title:       d.Title,
		PosterPath:  deref(d.PosterPath),
		Rating:      d.VoteAverage,
		ReleaseDate: deref(d.ReleaseDate),
		Overview:    d.Overview,
		Genres:      genres,
		Language:    strings.ToUpper(d.OriginalLanguage),
		Tagline:     deref(d.Tagline),
	}
	detail.ReleaseYear = domain.ReleaseYear(detail.ReleaseDate)
	if d.Runtime != nil {
		detail.Runtime = *d.Runtime
	}
	return detail
}

// MapGenres converts genre DTOs
func MapGenres(dtos []GenreDTO) []domain.Genre {
	genres := make([]domain.Genre, 0, len(dtos))
	for _, g := range dtos {
		genres = append(genres, domain.Genre{ID: g.ID, Name: g.Name})
	}
	return genres
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
