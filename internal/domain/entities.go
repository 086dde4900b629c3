package domain

import (
	"strconv"
	"time"
)

// Category names for the built-in lists
const (
	CategoryPopular  = "popular"
	CategoryTopRated = "top_rated"
)

// GenreCategory returns the category tag for a genre list (e.g. "genre_28")
func GenreCategory(genreID int) string {
	return "genre_" + strconv.Itoa(genreID)
}

// ListItem is a movie persisted in the page store under a category.
// Items of one category are ordered by (Page, LocalID). LocalID is assigned
// by the store; ItemID is the catalogue identifier and Page the origin page.
type ListItem struct {
	LocalID     uint64    `json:"localId"`
	ItemID      int       `json:"itemId"`
	Title       string    `json:"title"`
	PosterPath  string    `json:"posterPath,omitempty"`
	Rating      float64   `json:"rating"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	Summary     string    `json:"summary"`
	Category    string    `json:"category"`
	Page        int       `json:"page"`
	InsertedAt  time.Time `json:"insertedAt"`
}

// Cursor records the next page to fetch for a category.
// A nil NextPage means the end of data has been reached.
type Cursor struct {
	Category string `json:"category"`
	NextPage *int   `json:"nextPage"`
}

// EndOfData reports whether the cursor marks pagination as exhausted
func (c Cursor) EndOfData() bool {
	return c.NextPage == nil
}

// RemoteMovie is a list entry as returned by the catalogue service
type RemoteMovie struct {
	ID          int
	Title       string
	PosterPath  string
	VoteAverage float64
	ReleaseDate string
	Overview    string
}

// MoviePage is one page of a paginated catalogue response
type MoviePage struct {
	Page         int
	Results      []RemoteMovie
	TotalPages   int
	TotalResults int
}

// Movie is the presentation projection of a list entry
type Movie struct {
	ID          int
	Title       string
	PosterURL   string
	Rating      float64
	ReleaseYear string
	Overview    string
	IsFavourite bool
}

// MovieDetail holds the full metadata for a single movie
type MovieDetail struct {
	ID          int
	Title       string
	PosterURL   string
	PosterPath  string
	Rating      float64
	ReleaseDate string
	ReleaseYear string
	Overview    string
	Genres      []string
	Language    string
	Runtime     int // Minutes, 0 when unknown
	Tagline     string
	IsFavourite bool
}

// Genre is a catalogue genre
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Favourite is a movie saved by the user
type Favourite struct {
	MovieID     int       `json:"movieId"`
	Title       string    `json:"title"`
	PosterPath  string    `json:"posterPath,omitempty"`
	Rating      float64   `json:"rating"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	Overview    string    `json:"overview"`
	AddedAt     time.Time `json:"addedAt"`
}

// ReleaseYear returns the first four characters of a release date, or "N/A"
func ReleaseYear(releaseDate string) string {
	if len(releaseDate) < 4 {
		return "N/A"
	}
	return releaseDate[:4]
}
