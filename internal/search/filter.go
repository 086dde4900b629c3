// Package search holds the interactive search helpers: a debouncer for
// network search input and a local fuzzy filter over loaded list items.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/flickpick/internal/domain"
)

// Match is a filtered item with match metadata for highlighting
type Match struct {
	Item           domain.ListItem
	Index          int   // Position in the input slice
	MatchedIndexes []int // Title character positions that matched
	Score          int   // Higher is better
}

// titleSource implements fuzzy.Source over pre-lowered titles
type titleSource []string

func (s titleSource) String(i int) string { return s[i] }
func (s titleSource) Len() int            { return len(s) }

// Filter fuzzy-matches query against item titles, best match first.
// A blank query matches nothing.
func Filter(query string, items []domain.ListItem) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(items) == 0 {
		return nil
	}

	titles := make(titleSource, len(items))
	for i, item := range items {
		titles[i] = strings.ToLower(item.Title)
	}

	found := fuzzy.FindFrom(query, titles)
	matches := make([]Match, len(found))
	for i, m := range found {
		matches[i] = Match{
			Item:           items[m.Index],
			Index:          m.Index,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return matches
}
