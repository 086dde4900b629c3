package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/adapter"
	"github.com/mmcdole/flickpick/internal/catalog"
	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/store"
)

type fakeClient struct {
	genresErr error
}

func onePage(p, total int, id int, title string) domain.MoviePage {
	return domain.MoviePage{
		Page:       p,
		TotalPages: total,
		Results:    []domain.RemoteMovie{{ID: id, Title: title, ReleaseDate: "2010-07-16", VoteAverage: 8.8}},
	}
}

func (fakeClient) GetPopular(_ context.Context, p int) (domain.MoviePage, error) {
	return onePage(p, 3, p, "Popular"), nil
}

func (fakeClient) GetTopRated(_ context.Context, p int) (domain.MoviePage, error) {
	return onePage(p, 1, 100+p, "Top"), nil
}

func (fakeClient) DiscoverByGenre(_ context.Context, genreID, p int) (domain.MoviePage, error) {
	return onePage(p, 1, genreID*10+p, "Genre"), nil
}

func (fakeClient) SearchMovies(_ context.Context, _ string, p int) (domain.MoviePage, error) {
	return domain.MoviePage{Page: p, TotalPages: 1}, nil
}

func (fakeClient) GetMovieDetail(_ context.Context, id int) (*domain.MovieDetail, error) {
	return nil, domain.ErrNotFound
}

func (f fakeClient) GetGenres(context.Context) ([]domain.Genre, error) {
	if f.genresErr != nil {
		return nil, f.genresErr
	}
	return []domain.Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}}, nil
}

func newService(t *testing.T, client domain.CatalogClient) *catalog.Service {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "main.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return catalog.NewService(client, s, nil, catalog.Options{}, adapter.NullLogger())
}

func TestResolveCategory(t *testing.T) {
	svc := newService(t, fakeClient{})
	ctx := context.Background()

	got, err := resolveCategory(ctx, svc, "top_rated")
	require.NoError(t, err)
	assert.Equal(t, "top_rated", got)

	got, err = resolveCategory(ctx, svc, "genre_12")
	require.NoError(t, err)
	assert.Equal(t, "genre_12", got)

	got, err = resolveCategory(ctx, svc, "scifi")
	require.NoError(t, err)
	assert.Equal(t, "genre_878", got)

	_, err = resolveCategory(ctx, svc, "zzzz")
	assert.ErrorIs(t, err, catalog.ErrUnknownCategory)
}

func TestResolveCategoryWithoutGenres(t *testing.T) {
	svc := newService(t, fakeClient{genresErr: domain.ErrUnreachable})

	_, err := resolveCategory(context.Background(), svc, "action")
	assert.ErrorIs(t, err, catalog.ErrUnknownCategory)
}

func TestRunSync(t *testing.T) {
	svc := newService(t, fakeClient{})
	var out, status bytes.Buffer

	require.NoError(t, runSync(context.Background(), svc, domain.CategoryPopular, 2, &out, &status))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1\tPopular\t2010\t8.8", lines[0])
	assert.Equal(t, "2\tPopular\t2010\t8.8", lines[1])
	assert.Equal(t, "popular: 2 movies from 2 pages\n", status.String())

	status.Reset()
	out.Reset()
	require.NoError(t, runSync(context.Background(), svc, domain.CategoryTopRated, 5, &out, &status))
	assert.Equal(t, "top_rated: 1 movies from 1 pages, end of list\n", status.String())
}

type failingClient struct{ fakeClient }

func (failingClient) GetPopular(context.Context, int) (domain.MoviePage, error) {
	return domain.MoviePage{}, errors.Join(domain.ErrUnreachable, context.DeadlineExceeded)
}

func TestRunSyncFailure(t *testing.T) {
	svc := newService(t, failingClient{})
	var out, status bytes.Buffer

	err := runSync(context.Background(), svc, domain.CategoryPopular, 1, &out, &status)
	require.Error(t, err)

	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.FailureTransport, loadErr.Kind)
	assert.Empty(t, out.String())
}
