// Package tmdb is an HTTP client for the TMDB v3 REST API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/flickpick/internal/domain"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3/"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/"
	defaultTimeout      = 30 * time.Second
	userAgent           = "FlickPick/1.0"
)

// Client implements domain.CatalogClient for TMDB
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a TMDB client. Empty baseURL uses DefaultBaseURL and a
// zero timeout uses 30s.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs a GET with the api_key injected and decodes JSON into out
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("tmdb request", "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, api_key included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.logger.Error("tmdb request failed", "path", path, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrUnreachable, ctxErr)
		}
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", domain.ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("tmdb request error", "path", path, "status", resp.StatusCode)
		return statusError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("JSON parse error", "path", path, "error", err, "bodyLen", len(body))
		return &domain.ServiceError{StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func statusError(code int, body []byte) error {
	svcErr := &domain.ServiceError{StatusCode: code, Message: http.StatusText(code)}

	var status StatusResponse
	if json.Unmarshal(body, &status) == nil && status.StatusMessage != "" {
		svcErr.Message = status.StatusMessage
	}

	switch code {
	case http.StatusUnauthorized:
		svcErr.Err = domain.ErrAuthFailed
	case http.StatusNotFound:
		svcErr.Err = domain.ErrNotFound
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		// Page numbers past 500 are rejected with 422/400
		svcErr.Err = domain.ErrInvalidPage
	}
	return svcErr
}

func (c *Client) getPage(ctx context.Context, path string, query url.Values, page int) (domain.MoviePage, error) {
	if page < 1 {
		return domain.MoviePage{}, fmt.Errorf("page %d: %w", page, domain.ErrInvalidPage)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("page", strconv.Itoa(page))

	var resp MovieListResponse
	if err := c.doRequest(ctx, path, query, &resp); err != nil {
		return domain.MoviePage{}, err
	}
	return MapMoviePage(resp), nil
}

// GetPopular returns a page of movie/popular
func (c *Client) GetPopular(ctx context.Context, page int) (domain.MoviePage, error) {
	return c.getPage(ctx, "movie/popular", nil, page)
}

// GetTopRated returns a page of movie/top_rated
func (c *Client) GetTopRated(ctx context.Context, page int) (domain.MoviePage, error) {
	return c.getPage(ctx, "movie/top_rated", nil, page)
}

// DiscoverByGenre returns a page of movies tagged with genreID
func (c *Client) DiscoverByGenre(ctx context.Context, genreID, page int) (domain.MoviePage, error) {
	query := url.Values{}
	query.Set("with_genres", strconv.Itoa(genreID))
	return c.getPage(ctx, "discover/movie", query, page)
}

// SearchMovies returns a page of search results
func (c *Client) SearchMovies(ctx context.Context, queryText string, page int) (domain.MoviePage, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return domain.MoviePage{Page: page}, nil
	}
	query := url.Values{}
	query.Set("query", queryText)
	return c.getPage(ctx, "search/movie", query, page)
}

// GetMovieDetail returns full metadata for one movie
func (c *Client) GetMovieDetail(ctx context.Context, movieID int) (*domain.MovieDetail, error) {
	var dto MovieDetailDTO
	if err := c.doRequest(ctx, "movie/"+strconv.Itoa(movieID), nil, &dto); err != nil {
		return nil, err
	}
	return MapMovieDetail(dto), nil
}

// GetGenres returns the movie genre list
func (c *Client) GetGenres(ctx context.Context) ([]domain.Genre, error) {
	var resp GenreListResponse
	if err := c.doRequest(ctx, "genre/movie/list", nil, &resp); err != nil {
		return nil, err
	}
	return MapGenres(resp.Genres), nil
}

// ValidateKey checks the API key against the configuration endpoint
func (c *Client) ValidateKey(ctx context.Context) error {
	var out json.RawMessage
	err := c.doRequest(ctx, "configuration", nil, &out)
	if errors.Is(err, domain.ErrAuthFailed) {
		return domain.ErrAuthFailed
	}
	return err
}
