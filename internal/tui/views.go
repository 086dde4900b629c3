package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/tui/styles"
)

// Chrome lines around the list: tabs, status, input and help
const chromeHeight = 5

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return m.spinner.View() + " Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.detail != nil {
		b.WriteString(m.renderDetail())
	} else {
		b.WriteString(m.renderStatus())
		b.WriteString("\n")
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.mode != modeBrowse {
		b.WriteString(styles.FilterPromptStyle.Render(m.input.View()))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styles.ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTabs() string {
	parts := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		if i == m.active {
			parts[i] = styles.ActiveTabStyle.Render(t.title)
		} else {
			parts[i] = styles.TabStyle.Render(t.title)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// renderStatus shows refresh progress and failures for the active tab
func (m Model) renderStatus() string {
	tab := m.tabs[m.active]
	switch tab.kind {
	case tabPaged:
		l := tab.list
		switch {
		case l.snap.Refresh.IsLoading():
			return m.spinner.View() + styles.DimStyle.Render(" Refreshing...")
		case l.snap.Refresh.Status == domain.LoadFailed:
			return styles.ErrorStyle.Render("Refresh failed: "+l.snap.Refresh.Err.Error()) +
				styles.DimStyle.Render("  (R to retry)")
		case l.filter != "":
			return styles.AccentStyle.Render(fmt.Sprintf("%d of %d match %q", len(l.matches), len(l.snap.Items), l.filter))
		}
		return styles.DimStyle.Render(fmt.Sprintf("%d movies", len(l.snap.Items)))

	case tabSearch:
		s := m.search
		switch {
		case s.pager == nil:
			return styles.DimStyle.Render("Press / to search")
		case s.loading && len(s.movies) == 0:
			return m.spinner.View() + styles.DimStyle.Render(fmt.Sprintf(" Searching for %q...", s.pager.Query()))
		}
		return styles.DimStyle.Render(fmt.Sprintf("%d results for %q", len(s.movies), s.pager.Query()))

	default:
		return styles.DimStyle.Render(fmt.Sprintf("%d saved", len(m.favourites)))
	}
}

func (m Model) listHeight() int {
	return max(m.height-chromeHeight, 1)
}

func (m Model) renderList() string {
	tab := m.tabs[m.active]
	var lines []string
	var footer string

	switch tab.kind {
	case tabPaged:
		l := tab.list
		rows := l.rows()
		start, end := window(l.cursor, len(rows), m.listHeight())
		for i := start; i < end; i++ {
			item := rows[i].Item
			lines = append(lines, m.renderRow(item.Title, rows[i].MatchedIndexes,
				domain.ReleaseYear(item.ReleaseDate), item.Rating, false, i == l.cursor))
		}
		switch {
		case l.snap.Append.IsLoading():
			footer = m.spinner.View() + styles.DimStyle.Render(" Loading more...")
		case l.snap.Append.Status == domain.LoadFailed:
			footer = styles.ErrorStyle.Render("Loading more failed: "+l.snap.Append.Err.Error()) +
				styles.DimStyle.Render("  (R to retry)")
		case l.snap.EndOfData && len(l.snap.Items) > 0 && l.filter == "":
			footer = styles.DimStyle.Render("End of list")
		}

	case tabSearch:
		s := m.search
		start, end := window(s.cursor, len(s.movies), m.listHeight())
		for i := start; i < end; i++ {
			mv := s.movies[i]
			lines = append(lines, m.renderRow(mv.Title, nil, mv.ReleaseYear, mv.Rating, mv.IsFavourite, i == s.cursor))
		}
		switch {
		case s.loading && len(s.movies) > 0:
			footer = m.spinner.View() + styles.DimStyle.Render(" Loading more...")
		case s.err != nil:
			footer = styles.ErrorStyle.Render("Search failed: "+s.err.Error()) +
				styles.DimStyle.Render("  (R to retry)")
		case s.pager != nil && s.end && len(s.movies) == 0:
			footer = styles.DimStyle.Render("No results")
		}

	case tabFavourites:
		start, end := window(m.favCursor, len(m.favourites), m.listHeight())
		for i := start; i < end; i++ {
			mv := m.favourites[i]
			lines = append(lines, m.renderRow(mv.Title, nil, mv.ReleaseYear, mv.Rating, true, i == m.favCursor))
		}
		if len(m.favourites) == 0 {
			footer = styles.DimStyle.Render("No favourites yet. Press s in a movie's details to save it.")
		}
	}

	if footer != "" {
		lines = append(lines, footer)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(title string, matched []int, year string, rating float64, favourite, selected bool) string {
	titleWidth := max(m.width-20, 10)

	name := styles.Truncate(title, titleWidth)
	if !selected {
		name = styles.HighlightMatches(name, matched)
	}
	pad := titleWidth - lipgloss.Width(name)
	if pad > 0 {
		name += strings.Repeat(" ", pad)
	}

	mark := " "
	if favourite {
		mark = styles.FavouriteMark
	}
	row := fmt.Sprintf("%s %s  %s  %4.1f", mark, name, year, rating)
	if selected {
		return styles.SelectedItemStyle.Render(row)
	}
	return styles.NormalItemStyle.Render(row)
}

func (m Model) renderDetail() string {
	d := m.detail
	switch d.state.Status {
	case domain.StatusLoading:
		return m.spinner.View() + styles.DimStyle.Render(" Loading details...")
	case domain.StatusError:
		return styles.ErrorStyle.Render(d.state.Message) + "\n" + styles.DimStyle.Render("esc to go back")
	}

	movie := d.state.Data
	var b strings.Builder

	title := styles.TitleStyle.Render(movie.Title)
	if movie.IsFavourite {
		title += " " + styles.FavouriteMark
	}
	b.WriteString(title + "\n")
	if movie.Tagline != "" {
		b.WriteString(styles.SubtitleStyle.Render(movie.Tagline) + "\n")
	}
	b.WriteString("\n")

	meta := []string{movie.ReleaseYear, styles.BadgeStyle.Render(fmt.Sprintf("%.1f", movie.Rating))}
	if movie.Runtime > 0 {
		meta = append(meta, fmt.Sprintf("%dh %02dm", movie.Runtime/60, movie.Runtime%60))
	}
	if movie.Language != "" {
		meta = append(meta, movie.Language)
	}
	b.WriteString(strings.Join(meta, "  ") + "\n")
	if len(movie.Genres) > 0 {
		b.WriteString(styles.AccentStyle.Render(strings.Join(movie.Genres, ", ")) + "\n")
	}
	b.WriteString("\n")

	width := max(m.width-4, 20)
	b.WriteString(lipgloss.NewStyle().Width(width).Render(movie.Overview) + "\n")
	if movie.PosterURL != "" {
		b.WriteString("\n" + styles.DimStyle.Render(movie.PosterURL) + "\n")
	}
	return styles.ActiveBorder.Width(width).Render(b.String())
}

// window returns the [start, end) slice of n rows that keeps cursor visible
func window(cursor, n, height int) (int, int) {
	if n <= height {
		return 0, n
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}
