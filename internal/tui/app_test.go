package tui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/adapter"
	"github.com/mmcdole/flickpick/internal/catalog"
	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/paging"
	"github.com/mmcdole/flickpick/internal/store"
)

type stubClient struct{}

func (stubClient) GetPopular(_ context.Context, p int) (domain.MoviePage, error) {
	return domain.MoviePage{Page: p, TotalPages: 1}, nil
}

func (stubClient) GetTopRated(_ context.Context, p int) (domain.MoviePage, error) {
	return domain.MoviePage{Page: p, TotalPages: 1}, nil
}

func (stubClient) DiscoverByGenre(_ context.Context, _, p int) (domain.MoviePage, error) {
	return domain.MoviePage{Page: p, TotalPages: 1}, nil
}

func (stubClient) SearchMovies(_ context.Context, query string, p int) (domain.MoviePage, error) {
	return domain.MoviePage{
		Page:       p,
		TotalPages: 1,
		Results:    []domain.RemoteMovie{{ID: 42, Title: "Result for " + query, ReleaseDate: "1999-03-31"}},
	}, nil
}

func (stubClient) GetMovieDetail(_ context.Context, id int) (*domain.MovieDetail, error) {
	return &domain.MovieDetail{ID: id, Title: "Alien", ReleaseDate: "1979-05-25", ReleaseYear: "1979", Rating: 8.4}, nil
}

func (stubClient) GetGenres(context.Context) ([]domain.Genre, error) {
	return nil, nil
}

func newTestModel(t *testing.T, category string) Model {
	t.Helper()
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := catalog.NewService(stubClient{}, s, nil, catalog.Options{ImageBaseURL: "https://img.test/t/p"}, adapter.NullLogger())
	m, err := NewModel(context.Background(), svc, Options{Category: category})
	require.NoError(t, err)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func snapshot(titles ...string) paging.Snapshot {
	items := make([]domain.ListItem, len(titles))
	for i, title := range titles {
		items[i] = domain.ListItem{ItemID: i + 1, Title: title, Category: domain.CategoryPopular, Page: 1, ReleaseDate: "2001-01-01"}
	}
	return paging.Snapshot{Items: items, Refresh: domain.Idle(), Append: domain.Idle()}
}

func TestNewModelTabs(t *testing.T) {
	m := newTestModel(t, "")
	titles := make([]string, len(m.tabs))
	for i, tab := range m.tabs {
		titles[i] = tab.title
	}
	assert.Equal(t, []string{"Popular", "Top Rated", "Search", "Favourites"}, titles)
	assert.Equal(t, 0, m.active)

	m = newTestModel(t, domain.CategoryTopRated)
	assert.Equal(t, 1, m.active)

	m = newTestModel(t, "genre_28")
	require.Len(t, m.tabs, 5)
	assert.Equal(t, 2, m.active)
	assert.Equal(t, "genre_28", m.tabs[2].list.pager.Category())
}

func TestNewModelRejectsUnknownCategory(t *testing.T) {
	s, err := store.OpenFile(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	defer s.Close()

	svc := catalog.NewService(stubClient{}, s, nil, catalog.Options{}, adapter.NullLogger())
	_, err = NewModel(context.Background(), svc, Options{Category: "trending"})
	assert.ErrorIs(t, err, catalog.ErrUnknownCategory)
}

func TestSnapshotUpdatesList(t *testing.T) {
	m := newTestModel(t, "")
	m, cmd := update(t, m, SnapshotMsg{Category: domain.CategoryPopular, Snapshot: snapshot("Alien", "Arrival")})

	assert.NotNil(t, cmd, "should keep listening for snapshots")
	assert.Len(t, m.tabs[0].list.rows(), 2)
	assert.Contains(t, m.View(), "Alien")

	// Cursor is clamped when the list shrinks
	m.tabs[0].list.cursor = 1
	m, _ = update(t, m, SnapshotMsg{Category: domain.CategoryPopular, Snapshot: snapshot("Alien")})
	assert.Equal(t, 0, m.tabs[0].list.cursor)

	// Unknown categories are ignored
	_, cmd = update(t, m, SnapshotMsg{Category: "genre_1", Snapshot: snapshot("X")})
	assert.Nil(t, cmd)
}

func TestCursorMovement(t *testing.T) {
	m := newTestModel(t, "")
	m, _ = update(t, m, SnapshotMsg{Category: domain.CategoryPopular, Snapshot: snapshot("A", "B", "C")})

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	assert.Equal(t, 2, m.tabs[0].list.cursor)

	m, _ = update(t, m, runes("g"))
	assert.Equal(t, 0, m.tabs[0].list.cursor)
	m, _ = update(t, m, runes("G"))
	assert.Equal(t, 2, m.tabs[0].list.cursor)
}

func TestLocalFilter(t *testing.T) {
	m := newTestModel(t, "")
	m, _ = update(t, m, SnapshotMsg{Category: domain.CategoryPopular, Snapshot: snapshot("Alien", "Blade Runner", "Arrival")})

	m, _ = update(t, m, runes("f"))
	require.Equal(t, modeFilter, m.mode)
	m, _ = update(t, m, runes("a"))
	m, _ = update(t, m, runes("l"))

	l := m.tabs[0].list
	assert.Equal(t, "al", l.filter)
	rows := l.rows()
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.NotEqual(t, "Blade Runner", r.Item.Title)
	}

	// Enter keeps the filter, esc in browse mode clears it
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, m.mode)
	assert.Len(t, m.tabs[0].list.rows(), 2)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.tabs[0].list.rows(), 3)
}

func TestSearchFlow(t *testing.T) {
	m := newTestModel(t, "")

	m, _ = update(t, m, SearchQueryMsg{Query: "matrix"})
	require.NotNil(t, m.search.pager)
	assert.True(t, m.search.loading)

	res := LoadSearchPageCmd(context.Background(), m.svc, m.search.pager)()
	m, _ = update(t, m, res)
	assert.False(t, m.search.loading)
	require.Len(t, m.search.movies, 1)
	assert.Equal(t, "Result for matrix", m.search.movies[0].Title)
	assert.Equal(t, "1999", m.search.movies[0].ReleaseYear)
	assert.True(t, m.search.end)

	// A newer query makes older results stale
	old := m.search.pager
	m, _ = update(t, m, SearchQueryMsg{Query: "alien"})
	m, _ = update(t, m, SearchResultsMsg{Pager: old, Query: "matrix", Movies: []domain.Movie{{ID: 1}}})
	assert.Empty(t, m.search.movies)
	assert.True(t, m.search.loading)

	// A blank query clears the search
	m, _ = update(t, m, SearchQueryMsg{Query: ""})
	assert.Nil(t, m.search.pager)
	assert.False(t, m.search.loading)
}

func TestSearchKeyFocusesInput(t *testing.T) {
	m := newTestModel(t, "")
	m, _ = update(t, m, runes("/"))

	assert.Equal(t, modeSearch, m.mode)
	assert.Equal(t, tabSearch, m.tabs[m.active].kind)
	assert.True(t, m.input.Focused())

	m, _ = update(t, m, runes("x"))
	assert.Equal(t, "x", m.input.Value())
	assert.True(t, m.debouncer.Pending())
	m.debouncer.Stop()
}

func TestDetailAndFavourite(t *testing.T) {
	m := newTestModel(t, "")
	m, _ = update(t, m, SnapshotMsg{Category: domain.CategoryPopular, Snapshot: snapshot("Alien")})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.detail)
	assert.Equal(t, domain.StatusLoading, m.detail.state.Status)
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	require.Equal(t, domain.StatusSuccess, m.detail.state.Status)
	assert.False(t, m.detail.state.Data.IsFavourite)
	assert.Contains(t, m.View(), "Alien")

	m, cmd = update(t, m, runes("s"))
	require.NotNil(t, cmd)
	m, cmd = update(t, m, cmd())
	assert.True(t, m.detail.state.Data.IsFavourite)

	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	require.Len(t, m.favourites, 1)
	assert.Equal(t, 1, m.favourites[0].ID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.detail)
}

func TestStaleDetailIgnored(t *testing.T) {
	m := newTestModel(t, "")
	m.detail = &detailView{movieID: 5, state: domain.StateLoading[domain.MovieDetail]()}

	m, _ = update(t, m, DetailMsg{MovieID: 6, State: domain.StateSuccess(domain.MovieDetail{ID: 6})})
	assert.Equal(t, domain.StatusLoading, m.detail.state.Status)
}

func TestTabSwitching(t *testing.T) {
	m := newTestModel(t, "")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, tabFavourites, m.tabs[m.active].kind)
	assert.NotNil(t, cmd, "favourites load on entry")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.active)
}

func TestQueryChannelKeepsLatest(t *testing.T) {
	q := NewQueryChannel()
	q.Send("a")
	q.Send("ab")
	q.Send("abc")

	msg := q.Wait()()
	assert.Equal(t, SearchQueryMsg{Query: "abc"}, msg)
}

func TestWindow(t *testing.T) {
	start, end := window(0, 3, 10)
	assert.Equal(t, [2]int{0, 3}, [2]int{start, end})

	start, end = window(50, 100, 10)
	assert.Equal(t, [2]int{45, 55}, [2]int{start, end})

	start, end = window(99, 100, 10)
	assert.Equal(t, [2]int{90, 100}, [2]int{start, end})
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-1, 5))
	assert.Equal(t, 4, clamp(9, 5))
	assert.Equal(t, 0, clamp(3, 0))
}

type recordingOpener struct{ opened []int }

func (r *recordingOpener) OpenMovie(id int) error {
	r.opened = append(r.opened, id)
	return nil
}

func TestOpenFromDetail(t *testing.T) {
	m := newTestModel(t, "")
	opener := &recordingOpener{}
	m.opener = opener
	m.detail = &detailView{movieID: 603, state: domain.StateSuccess(domain.MovieDetail{ID: 603})}

	_, cmd := update(t, m, runes("o"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []int{603}, opener.opened)
}
