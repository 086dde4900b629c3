// Package tui is the interactive movie browser: tabbed category lists
// backed by pagers, debounced network search, a local fuzzy filter and a
// detail pane with favourites.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/flickpick/internal/catalog"
	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/paging"
	"github.com/mmcdole/flickpick/internal/search"
	"github.com/mmcdole/flickpick/internal/tui/styles"
)

// searchPrefetch is how close to the end of search results the cursor may
// get before the next page is requested
const searchPrefetch = 5

type tabKind int

const (
	tabPaged tabKind = iota
	tabSearch
	tabFavourites
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeSearch
	modeFilter
)

// pagedList is one category tab
type pagedList struct {
	pager   *paging.Pager
	snap    paging.Snapshot
	cursor  int
	filter  string
	matches []search.Match
}

// rows returns the visible items, filtered when a filter is active
func (l *pagedList) rows() []search.Match {
	if l.filter != "" {
		return l.matches
	}
	rows := make([]search.Match, len(l.snap.Items))
	for i, item := range l.snap.Items {
		rows[i] = search.Match{Item: item, Index: i}
	}
	return rows
}

func (l *pagedList) applyFilter(query string) {
	l.filter = query
	l.matches = search.Filter(query, l.snap.Items)
}

type tabEntry struct {
	kind  tabKind
	title string
	list  *pagedList
}

// searchState tracks the network search tab
type searchState struct {
	pager   *paging.SearchPager
	movies  []domain.Movie
	loading bool
	end     bool
	err     error
	cursor  int
}

type detailView struct {
	movieID int
	state   domain.State[domain.MovieDetail]
}

// MovieOpener opens a movie outside the terminal
type MovieOpener interface {
	OpenMovie(movieID int) error
}

// Options configures the browser
type Options struct {
	// Category is the tab selected on start. A genre category gets its own tab.
	Category string
	Debounce time.Duration
	Opener   MovieOpener // Optional
}

// Model is the Bubble Tea model for the browser
type Model struct {
	ctx    context.Context
	svc    *catalog.Service
	opener MovieOpener

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model
	mode    inputMode

	tabs      []tabEntry
	active    int
	search    *searchState
	queries   *QueryChannel
	debouncer *search.Debouncer

	favourites []domain.Movie
	favCursor  int

	detail *detailView
	err    error

	width  int
	height int
}

// NewModel builds the browser with popular and top rated tabs, plus the
// requested category when it is a genre list.
func NewModel(ctx context.Context, svc *catalog.Service, opts Options) (Model, error) {
	categories := []string{domain.CategoryPopular, domain.CategoryTopRated}
	if opts.Category != "" && opts.Category != domain.CategoryPopular && opts.Category != domain.CategoryTopRated {
		categories = append(categories, opts.Category)
	}

	var tabs []tabEntry
	active := 0
	for _, category := range categories {
		p, err := svc.Pager(category)
		if err != nil {
			return Model{}, err
		}
		if category == opts.Category {
			active = len(tabs)
		}
		tabs = append(tabs, tabEntry{kind: tabPaged, title: categoryTitle(category), list: &pagedList{pager: p}})
	}
	tabs = append(tabs,
		tabEntry{kind: tabSearch, title: "Search"},
		tabEntry{kind: tabFavourites, title: "Favourites"},
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	ti := textinput.New()
	ti.CharLimit = 100

	queries := NewQueryChannel()

	return Model{
		ctx:       ctx,
		svc:       svc,
		opener:    opts.Opener,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   s,
		input:     ti,
		tabs:      tabs,
		active:    active,
		search:    &searchState{},
		queries:   queries,
		debouncer: search.NewDebouncer(opts.Debounce, queries.Send),
	}, nil
}

func categoryTitle(category string) string {
	switch category {
	case domain.CategoryPopular:
		return "Popular"
	case domain.CategoryTopRated:
		return "Top Rated"
	default:
		return category
	}
}

// Init starts every pager and the search listener
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.queries.Wait()}
	for _, t := range m.tabs {
		if t.list != nil {
			cmds = append(cmds, StartPagerCmd(m.ctx, t.list.pager))
		}
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PagerStartedMsg:
		if l := m.listFor(msg.Category); l != nil {
			return m, WaitForSnapshotCmd(l.pager)
		}
		return m, nil

	case SnapshotMsg:
		l := m.listFor(msg.Category)
		if l == nil {
			return m, nil
		}
		l.snap = msg.Snapshot
		if l.filter != "" {
			l.applyFilter(l.filter)
		}
		l.cursor = clamp(l.cursor, len(l.rows()))
		return m, WaitForSnapshotCmd(l.pager)

	case PagerStoppedMsg:
		return m, nil

	case SearchQueryMsg:
		return m, tea.Batch(m.startSearch(msg.Query), m.queries.Wait())

	case SearchResultsMsg:
		// Results for a search the user has moved past are dropped
		if m.search.pager == nil || msg.Pager != m.search.pager {
			return m, nil
		}
		m.search.loading = false
		m.search.err = msg.Err
		m.search.end = msg.EndOfData
		if msg.Err == nil {
			m.search.movies = msg.Movies
		}
		return m, nil

	case DetailMsg:
		if m.detail != nil && m.detail.movieID == msg.MovieID {
			m.detail.state = msg.State
		}
		return m, nil

	case FavouriteToggledMsg:
		if m.detail != nil && m.detail.movieID == msg.MovieID && m.detail.state.Status == domain.StatusSuccess {
			m.detail.state.Data.IsFavourite = msg.IsFavourite
		}
		return m, LoadFavouritesCmd(m.ctx, m.svc)

	case FavouritesLoadedMsg:
		m.favourites = msg.Movies
		m.favCursor = clamp(m.favCursor, len(m.favourites))
		return m, nil

	case ErrMsg:
		m.err = msg
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.debouncer.Stop()
		return m, tea.Quit
	}

	switch m.mode {
	case modeSearch, modeFilter:
		return m.handleInputKey(msg)
	}

	if m.detail != nil {
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Enter):
			m.detail = nil
		case key.Matches(msg, m.keys.Favourite):
			if m.detail.state.Status == domain.StatusSuccess {
				return m, ToggleFavouriteCmd(m.ctx, m.svc, m.detail.state.Data)
			}
		case key.Matches(msg, m.keys.Open):
			if m.opener != nil {
				return m, OpenMovieCmd(m.opener, m.detail.movieID)
			}
		case key.Matches(msg, m.keys.Quit):
			m.debouncer.Stop()
			return m, tea.Quit
		}
		return m, nil
	}

	tab := m.tabs[m.active]
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.debouncer.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.NextTab):
		return m.switchTab((m.active + 1) % len(m.tabs))

	case key.Matches(msg, m.keys.PrevTab):
		return m.switchTab((m.active + len(m.tabs) - 1) % len(m.tabs))

	case key.Matches(msg, m.keys.Up):
		return m.move(-1)
	case key.Matches(msg, m.keys.Down):
		return m.move(1)
	case key.Matches(msg, m.keys.PageUp):
		return m.move(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		return m.move(m.listHeight())
	case key.Matches(msg, m.keys.Home):
		return m.move(-m.rowCount())
	case key.Matches(msg, m.keys.End):
		return m.move(m.rowCount())

	case key.Matches(msg, m.keys.Enter):
		if id, ok := m.selectedMovieID(); ok {
			m.detail = &detailView{movieID: id, state: domain.StateLoading[domain.MovieDetail]()}
			return m, LoadDetailCmd(m.ctx, m.svc, id)
		}

	case key.Matches(msg, m.keys.Search):
		for i, t := range m.tabs {
			if t.kind == tabSearch {
				m.active = i
			}
		}
		m.mode = modeSearch
		m.input.Prompt = "/ "
		if m.search.pager != nil {
			m.input.SetValue(m.search.pager.Query())
		} else {
			m.input.SetValue("")
		}
		return m, tea.Batch(m.input.Focus(), textinput.Blink)

	case key.Matches(msg, m.keys.Filter):
		if tab.list == nil {
			return m, nil
		}
		m.mode = modeFilter
		m.input.Prompt = "filter: "
		m.input.SetValue(tab.list.filter)
		return m, tea.Batch(m.input.Focus(), textinput.Blink)

	case key.Matches(msg, m.keys.Back):
		if tab.list != nil && tab.list.filter != "" {
			tab.list.applyFilter("")
			tab.list.cursor = 0
		}

	case key.Matches(msg, m.keys.Refresh):
		switch tab.kind {
		case tabPaged:
			tab.list.pager.Refresh()
		case tabSearch:
			if m.search.pager != nil {
				return m, m.startSearch(m.search.pager.Query())
			}
		case tabFavourites:
			return m, LoadFavouritesCmd(m.ctx, m.svc)
		}

	case key.Matches(msg, m.keys.Retry):
		switch tab.kind {
		case tabPaged:
			tab.list.pager.Retry()
		case tabSearch:
			if m.search.err != nil && !m.search.loading && m.search.pager != nil {
				m.search.loading = true
				m.search.err = nil
				return m, LoadSearchPageCmd(m.ctx, m.svc, m.search.pager)
			}
		}
	}

	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	mode := m.mode
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		if mode == modeFilter {
			if l := m.tabs[m.active].list; l != nil {
				l.applyFilter("")
				l.cursor = 0
			}
		}
		return m, nil
	case tea.KeyEnter:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	switch mode {
	case modeSearch:
		m.debouncer.Trigger(m.input.Value())
	case modeFilter:
		if l := m.tabs[m.active].list; l != nil {
			l.applyFilter(m.input.Value())
			l.cursor = 0
		}
	}
	return m, cmd
}

// startSearch replaces the current search with query. A blank query clears it.
func (m Model) startSearch(query string) tea.Cmd {
	*m.search = searchState{}
	if query == "" {
		return nil
	}
	m.search.pager = m.svc.Search(query)
	m.search.loading = true
	return LoadSearchPageCmd(m.ctx, m.svc, m.search.pager)
}

func (m Model) switchTab(i int) (tea.Model, tea.Cmd) {
	m.active = i
	if m.tabs[i].kind == tabFavourites {
		return m, LoadFavouritesCmd(m.ctx, m.svc)
	}
	return m, nil
}

// move shifts the cursor and reports the access so more data can load
func (m Model) move(delta int) (tea.Model, tea.Cmd) {
	tab := m.tabs[m.active]
	switch tab.kind {
	case tabPaged:
		l := tab.list
		rows := l.rows()
		l.cursor = clamp(l.cursor+delta, len(rows))
		if len(rows) > 0 {
			l.pager.Access(rows[l.cursor].Index)
		}

	case tabSearch:
		s := m.search
		s.cursor = clamp(s.cursor+delta, len(s.movies))
		if s.pager != nil && !s.loading && !s.end && s.err == nil && s.cursor >= len(s.movies)-searchPrefetch {
			s.loading = true
			return m, LoadSearchPageCmd(m.ctx, m.svc, s.pager)
		}

	case tabFavourites:
		m.favCursor = clamp(m.favCursor+delta, len(m.favourites))
	}
	return m, nil
}

func (m Model) selectedMovieID() (int, bool) {
	tab := m.tabs[m.active]
	switch tab.kind {
	case tabPaged:
		rows := tab.list.rows()
		if len(rows) > 0 {
			return rows[tab.list.cursor].Item.ItemID, true
		}
	case tabSearch:
		if len(m.search.movies) > 0 {
			return m.search.movies[m.search.cursor].ID, true
		}
	case tabFavourites:
		if len(m.favourites) > 0 {
			return m.favourites[m.favCursor].ID, true
		}
	}
	return 0, false
}

func (m Model) rowCount() int {
	tab := m.tabs[m.active]
	switch tab.kind {
	case tabPaged:
		return len(tab.list.rows())
	case tabSearch:
		return len(m.search.movies)
	default:
		return len(m.favourites)
	}
}

func (m Model) listFor(category string) *pagedList {
	for _, t := range m.tabs {
		if t.list != nil && t.list.pager.Category() == category {
			return t.list
		}
	}
	return nil
}

// clamp bounds a cursor to [0, n)
func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
