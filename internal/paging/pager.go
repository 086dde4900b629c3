package paging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/flickpick/internal/domain"
)

// DefaultPrefetchDistance is how close to the loaded boundary an access must
// be to trigger an Append.
const DefaultPrefetchDistance = 5

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("pager already started")

// PagerConfig tunes a Pager
type PagerConfig struct {
	PrefetchDistance int
	RefreshOnStart   bool // Refresh even when the store already holds items
}

// Snapshot is the consumer's view of a category
type Snapshot struct {
	Items     []domain.ListItem
	Refresh   domain.LoadState
	Append    domain.LoadState
	EndOfData bool
}

type requestKind int

const (
	reqAccess requestKind = iota
	reqRefresh
	reqRetry
)

type request struct {
	kind  requestKind
	index int
}

type result struct {
	id       uint64
	loadType domain.LoadType
	outcome  domain.LoadOutcome
}

type inflight struct {
	id         uint64
	loadType   domain.LoadType
	cancel     context.CancelFunc
	superseded bool
}

// Pager presents a category of the page store as an incrementally loading
// sequence. All load decisions happen on a single goroutine, so at most one
// load is in flight. A Refresh supersedes an in-flight Append: the Append is
// cancelled and the Refresh starts once it has returned.
type Pager struct {
	mediator *Mediator
	store    domain.Store
	cfg      PagerConfig
	logger   *slog.Logger

	requests chan request
	results  chan result
	updates  chan Snapshot
	done     chan struct{}
	started  atomic.Bool

	mu      sync.RWMutex
	current Snapshot

	// Owned by the run goroutine
	snap           Snapshot
	anchor         int
	nextID         uint64
	active         *inflight
	pendingRefresh bool
}

// NewPager creates a pager over mediator's category
func NewPager(mediator *Mediator, store domain.Store, cfg PagerConfig, logger *slog.Logger) *Pager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PrefetchDistance <= 0 {
		cfg.PrefetchDistance = DefaultPrefetchDistance
	}
	initial := Snapshot{Items: []domain.ListItem{}, Refresh: domain.Idle(), Append: domain.Idle()}
	return &Pager{
		mediator: mediator,
		store:    store,
		cfg:      cfg,
		logger:   logger.With("category", mediator.Category()),
		requests: make(chan request, 16),
		results:  make(chan result, 1),
		updates:  make(chan Snapshot, 1),
		done:     make(chan struct{}),
		current:  initial,
		snap:     initial,
		anchor:   -1,
	}
}

// Category returns the observed category
func (p *Pager) Category() string {
	return p.mediator.Category()
}

// Start reads the stored category and begins observing it until ctx is
// cancelled. A Refresh is issued when the store holds nothing for the
// category, or always when RefreshOnStart is set.
func (p *Pager) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	changes, unsubscribe := p.store.Subscribe(p.Category())
	if err := p.reload(ctx); err != nil {
		unsubscribe()
		close(p.done)
		close(p.updates)
		return err
	}

	if p.cfg.RefreshOnStart || len(p.snap.Items) == 0 {
		p.launch(ctx, domain.LoadRefresh)
	}
	p.emit()

	go p.run(ctx, changes, unsubscribe)
	return nil
}

// Updates delivers snapshots, latest wins. Closed when the pager stops.
func (p *Pager) Updates() <-chan Snapshot {
	return p.updates
}

// Done is closed when the pager stops
func (p *Pager) Done() <-chan struct{} {
	return p.done
}

// Snapshot returns the most recent snapshot
func (p *Pager) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Access reports that the consumer is looking at index.
func (p *Pager) Access(index int) {
	p.send(request{kind: reqAccess, index: index})
}

// Refresh discards the category and reloads it from page 1
func (p *Pager) Refresh() {
	p.send(request{kind: reqRefresh})
}

// Retry re-issues a failed load, the Refresh first when both failed
func (p *Pager) Retry() {
	p.send(request{kind: reqRetry})
}

func (p *Pager) send(req request) {
	select {
	case p.requests <- req:
	case <-p.done:
	}
}

func (p *Pager) run(ctx context.Context, changes <-chan struct{}, unsubscribe func()) {
	defer func() {
		unsubscribe()
		if p.active != nil {
			p.active.cancel()
		}
		close(p.done)
		close(p.updates)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-changes:
			if err := p.reload(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("failed to read page store", "error", err)
				continue
			}
			p.emit()

		case req := <-p.requests:
			p.handle(ctx, req)

		case res := <-p.results:
			p.finish(ctx, res)
		}
	}
}

func (p *Pager) handle(ctx context.Context, req request) {
	switch req.kind {
	case reqAccess:
		p.anchor = req.index
		if p.shouldAppend(req.index) {
			p.launch(ctx, domain.LoadAppend)
			p.emit()
		}

	case reqRefresh:
		if p.active != nil {
			if p.active.loadType == domain.LoadRefresh || p.pendingRefresh {
				return
			}
			// Let the cancelled Append return before writing page 1
			p.active.superseded = true
			p.active.cancel()
			p.pendingRefresh = true
			p.snap.Refresh = domain.Loading()
			p.snap.Append = domain.Idle()
			p.emit()
			return
		}
		p.launch(ctx, domain.LoadRefresh)
		p.emit()

	case reqRetry:
		if p.active != nil {
			return
		}
		// A failed Refresh stays pending until a Refresh succeeds, even
		// when Appends ran in between.
		switch {
		case p.snap.Refresh.Status == domain.LoadFailed:
			p.launch(ctx, domain.LoadRefresh)
		case p.snap.Append.Status == domain.LoadFailed:
			p.launch(ctx, domain.LoadAppend)
		default:
			return
		}
		p.emit()
	}
}

func (p *Pager) shouldAppend(index int) bool {
	if p.active != nil || p.snap.EndOfData {
		return false
	}
	// A failed Append waits for an explicit Retry
	if p.snap.Append.Status == domain.LoadFailed || p.snap.Refresh.IsLoading() {
		return false
	}
	if p.snap.Refresh.Status == domain.LoadFailed && len(p.snap.Items) == 0 {
		return false
	}
	return index >= len(p.snap.Items)-p.cfg.PrefetchDistance
}

func (p *Pager) launch(ctx context.Context, loadType domain.LoadType) {
	p.nextID++
	loadCtx, cancel := context.WithCancel(ctx)
	p.active = &inflight{id: p.nextID, loadType: loadType, cancel: cancel}

	switch loadType {
	case domain.LoadRefresh:
		p.snap.Refresh = domain.Loading()
		p.snap.Append = domain.Idle()
	case domain.LoadAppend:
		p.snap.Append = domain.Loading()
	}

	state := domain.PagingState{LoadedCount: len(p.snap.Items), Anchor: p.anchor}
	id := p.nextID
	go func() {
		defer cancel()
		outcome := p.mediator.Load(loadCtx, loadType, state)
		select {
		case p.results <- result{id: id, loadType: loadType, outcome: outcome}:
		case <-p.done:
		}
	}()
}

func (p *Pager) finish(ctx context.Context, res result) {
	if p.active == nil || p.active.id != res.id {
		return
	}
	superseded := p.active.superseded
	p.active = nil

	if superseded {
		p.logger.Debug("discarded superseded load", "loadType", res.loadType)
		if p.pendingRefresh {
			p.pendingRefresh = false
			p.launch(ctx, domain.LoadRefresh)
		}
		p.emit()
		return
	}

	if res.outcome.Failed() {
		p.setLoadState(res.loadType, domain.Failed(res.outcome.Err))
		p.emit()
		return
	}

	p.setLoadState(res.loadType, domain.Idle())
	if err := p.reload(ctx); err != nil {
		p.logger.Error("failed to read page store", "error", err)
	}
	p.emit()
}

func (p *Pager) setLoadState(loadType domain.LoadType, state domain.LoadState) {
	switch loadType {
	case domain.LoadRefresh:
		p.snap.Refresh = state
	case domain.LoadAppend:
		p.snap.Append = state
	}
}

// reload re-reads items and cursor in one read transaction, so the items
// and end-of-data flag always come from the same commit.
func (p *Pager) reload(ctx context.Context) error {
	var (
		items  []domain.ListItem
		cursor *domain.Cursor
	)
	err := p.store.View(ctx, func(tx domain.PageTx) error {
		var err error
		if items, err = tx.ItemsByCategory(p.Category()); err != nil {
			return err
		}
		cursor, err = tx.GetCursor(p.Category())
		return err
	})
	if err != nil {
		return err
	}
	p.snap.Items = items
	p.snap.EndOfData = cursor != nil && cursor.EndOfData()
	return nil
}

// emit publishes the run goroutine's snapshot
func (p *Pager) emit() {
	snap := p.snap

	p.mu.Lock()
	p.current = snap
	p.mu.Unlock()

	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- snap:
	default:
	}
}
