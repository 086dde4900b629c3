package tui

import tea "github.com/charmbracelet/bubbletea"

// QueryChannel adapts the search debouncer's callback to a channel that a
// Bubble Tea command can wait on. Only the newest unread query is kept.
type QueryChannel struct {
	ch chan string
}

// NewQueryChannel creates a new query channel
func NewQueryChannel() *QueryChannel {
	return &QueryChannel{ch: make(chan string, 1)}
}

// Send publishes query, replacing any query not yet read
func (q *QueryChannel) Send(query string) {
	for {
		select {
		case q.ch <- query:
			return
		default:
		}
		select {
		case <-q.ch: // Drop the stale one
		default:
		}
	}
}

// Wait returns a command that blocks until the next query arrives
func (q *QueryChannel) Wait() tea.Cmd {
	return func() tea.Msg {
		return SearchQueryMsg{Query: <-q.ch}
	}
}
