package store

import "sync"

// Notifier fans out per-category change signals to subscribers.
// Sends never block: a subscriber that has not drained its previous signal
// keeps that one, which is enough to trigger a re-query.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe registers interest in a category
func (n *Notifier) Subscribe(category string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	ch := make(chan struct{}, 1)
	if n.subs[category] == nil {
		n.subs[category] = make(map[int]chan struct{})
	}
	n.subs[category][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[category], id)
			if len(n.subs[category]) == 0 {
				delete(n.subs, category)
			}
		})
	}
	return ch, cancel
}

// Notify signals every subscriber of the given categories
func (n *Notifier) Notify(categories map[string]struct{}) {
	if len(categories) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	for category := range categories {
		for _, ch := range n.subs[category] {
			select {
			case ch <- struct{}{}:
			default: // Already pending
			}
		}
	}
}
