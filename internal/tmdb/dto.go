package tmdb

// MovieListResponse is a paginated list of movies
type MovieListResponse struct {
	Page         int        `json:"page"`
	Results      []MovieDTO `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// MovieDTO is one entry of a movie list
type MovieDTO struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  *string `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate *string `json:"release_date"`
	Overview    string  `json:"overview"`
}

// MovieDetailDTO is the response of movie/{id}
type MovieDetailDTO struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	PosterPath       *string    `json:"poster_path"`
	VoteAverage      float64    `json:"vote_average"`
	ReleaseDate      *string    `json:"release_date"`
	Overview         string     `json:"overview"`
	Genres           []GenreDTO `json:"genres"`
	OriginalLanguage string     `json:"original_language"`
	Runtime          *int       `json:"runtime"`
	Tagline          *string    `json:"tagline"`
}

// GenreDTO is a genre entry
type GenreDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreListResponse is the response of genre/movie/list
type GenreListResponse struct {
	Genres []GenreDTO `json:"genres"`
}

// StatusResponse is the error body TMDB returns with non-2xx responses
type StatusResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}
