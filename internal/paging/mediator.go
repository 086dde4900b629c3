// Package paging keeps a persisted, paged copy of remote catalogue lists.
//
// A Mediator decides which page to fetch for one category and commits the
// fetched items together with the category cursor. A Pager observes the
// store and asks its Mediator for more as the consumer scrolls. A
// SearchPager pages through ephemeral search results in memory.
package paging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/metrics"
)

// Mediator coordinates Refresh/Prepend/Append loads for one category.
// It does not lock: callers serialize loads per category (the Pager does).
type Mediator struct {
	category string
	store    domain.Store
	fetcher  domain.PageFetcher
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewMediator creates a mediator for category. rec may be nil.
func NewMediator(
	category string,
	store domain.Store,
	fetcher domain.PageFetcher,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *Mediator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mediator{
		category: category,
		store:    store,
		fetcher:  fetcher,
		metrics:  rec,
		logger:   logger.With("category", category),
		now:      time.Now,
	}
}

// Category returns the category this mediator writes
func (m *Mediator) Category() string {
	return m.category
}

// Load runs one load request. state is informational.
func (m *Mediator) Load(ctx context.Context, loadType domain.LoadType, state domain.PagingState) domain.LoadOutcome {
	outcome, page := m.load(ctx, loadType)

	label := metrics.OutcomeSuccess
	switch {
	case outcome.Failed() && errors.Is(outcome.Err, context.Canceled):
		// Superseded by a Refresh, or shutting down
		label = metrics.OutcomeCancelled
		m.logger.Debug("paging load cancelled", "loadType", loadType, "page", page)
	case outcome.Failed():
		label = failureKind(outcome.Err).String()
		m.logger.Warn("paging load failed",
			"loadType", loadType, "page", page, "loaded", state.LoadedCount, "error", outcome.Err)
	case outcome.EndOfData:
		label = metrics.OutcomeEndOfData
		m.logger.Debug("paging load complete", "loadType", loadType, "page", page, "endOfData", true)
	default:
		m.logger.Debug("paging load complete", "loadType", loadType, "page", page, "loaded", state.LoadedCount)
	}
	m.metrics.ObserveLoad(m.category, loadType.String(), label)

	return outcome
}

func (m *Mediator) load(ctx context.Context, loadType domain.LoadType) (domain.LoadOutcome, int) {
	var page int
	switch loadType {
	case domain.LoadRefresh:
		page = 1
	case domain.LoadPrepend:
		// Lists only grow forward
		return domain.LoadSuccess(true), 0
	case domain.LoadAppend:
		cursor, err := domain.CursorFor(ctx, m.store, m.category)
		if err != nil {
			return domain.LoadFailure(m.loadError(domain.FailureStorage, loadType, 0, err)), 0
		}
		switch {
		case cursor == nil:
			page = 1
		case cursor.EndOfData():
			return domain.LoadSuccess(true), 0
		default:
			page = *cursor.NextPage
		}
	default:
		return domain.LoadFailure(m.loadError(domain.FailureStorage, loadType, 0, domain.ErrInvalidPage)), 0
	}

	// Fetch before any write
	start := m.now()
	result, err := m.fetcher.FetchPage(ctx, page)
	m.metrics.ObserveFetch(m.category, m.now().Sub(start))
	if err != nil {
		return domain.LoadFailure(m.loadError(domain.ClassifyFetchError(err), loadType, page, err)), page
	}

	endReached := page >= result.TotalPages

	// Clear on refresh, insert and advance the cursor in one transaction
	items := toListItems(result.Results, m.category, page)
	cursor := domain.Cursor{Category: m.category}
	if !endReached {
		next := page + 1
		cursor.NextPage = &next
	}

	err = m.store.Update(ctx, func(tx domain.PageTx) error {
		if loadType == domain.LoadRefresh {
			if err := tx.DeleteItemsByCategory(m.category); err != nil {
				return err
			}
			if err := tx.DeleteCursor(m.category); err != nil {
				return err
			}
		}
		if err := tx.InsertItems(items); err != nil {
			return err
		}
		return tx.PutCursor(cursor)
	})
	if err != nil {
		return domain.LoadFailure(m.loadError(domain.FailureStorage, loadType, page, err)), page
	}
	m.metrics.AddItemsWritten(m.category, len(items))

	return domain.LoadSuccess(endReached), page
}

func (m *Mediator) loadError(kind domain.FailureKind, loadType domain.LoadType, page int, err error) *domain.LoadError {
	return &domain.LoadError{Kind: kind, Category: m.category, LoadType: loadType, Page: page, Err: err}
}

func failureKind(err error) domain.FailureKind {
	if le, ok := err.(*domain.LoadError); ok {
		return le.Kind
	}
	return domain.ClassifyFetchError(err)
}

func toListItems(movies []domain.RemoteMovie, category string, page int) []domain.ListItem {
	items := make([]domain.ListItem, 0, len(movies))
	for _, m := range movies {
		items = append(items, domain.ListItem{
			ItemID:      m.ID,
			Title:       m.Title,
			PosterPath:  m.PosterPath,
			Rating:      m.VoteAverage,
			ReleaseDate: m.ReleaseDate,
			Summary:     m.Overview,
			Category:    category,
			Page:        page,
		})
	}
	return items
}
