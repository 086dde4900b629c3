package paging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

func startPager(t *testing.T, s domain.Store, f domain.PageFetcher, cfg PagerConfig) *Pager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := NewPager(NewMediator(domain.CategoryPopular, s, f, nil, nil), s, cfg, nil)
	require.NoError(t, p.Start(ctx))
	return p
}

func waitSnapshot(t *testing.T, p *Pager, msg string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(p.Snapshot()) }, waitTimeout, waitTick, msg)
	return p.Snapshot()
}

func idle(s Snapshot) bool {
	return s.Refresh.Status != domain.LoadInFlight && s.Append.Status != domain.LoadInFlight
}

func TestPagerRefreshesEmptyCategoryOnStart(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(3, 10)
	p := startPager(t, s, f, PagerConfig{})

	snap := waitSnapshot(t, p, "first page", func(s Snapshot) bool { return len(s.Items) == 10 && idle(s) })
	assert.Equal(t, pageIDs(1, 10), itemIDs(snap.Items))
	assert.False(t, snap.EndOfData)
	assert.Equal(t, domain.LoadIdle, snap.Refresh.Status)
	assert.Equal(t, []int{1}, f.pagesRequested())
}

func TestPagerAppendsNearBoundary(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(3, 10)
	p := startPager(t, s, f, PagerConfig{PrefetchDistance: 3})
	waitSnapshot(t, p, "first page", func(s Snapshot) bool { return len(s.Items) == 10 && idle(s) })

	// Far from the boundary: nothing happens
	p.Access(2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.callCount())

	p.Access(7)
	waitSnapshot(t, p, "second page", func(s Snapshot) bool { return len(s.Items) == 20 && idle(s) })

	p.Access(19)
	snap := waitSnapshot(t, p, "third page", func(s Snapshot) bool { return s.EndOfData && idle(s) })
	want := append(append(pageIDs(1, 10), pageIDs(2, 10)...), pageIDs(3, 10)...)
	assert.Equal(t, want, itemIDs(snap.Items))

	// Finished sequence: no further fetches
	p.Access(29)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, f.pagesRequested())
}

func TestPagerResumesFromPersistedCursor(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(3, 5)
	m := NewMediator(domain.CategoryPopular, s, f, nil, nil)
	require.NoError(t, m.Load(context.Background(), domain.LoadRefresh, noState).Err)
	require.NoError(t, m.Load(context.Background(), domain.LoadAppend, noState).Err)

	p := startPager(t, s, f, PagerConfig{PrefetchDistance: 1})
	snap := waitSnapshot(t, p, "stored items", func(s Snapshot) bool { return len(s.Items) == 10 })
	assert.Equal(t, []int{1, 2}, f.pagesRequested(), "stored items must not trigger a refresh")
	assert.False(t, snap.EndOfData)

	p.Access(9)
	waitSnapshot(t, p, "page three", func(s Snapshot) bool { return s.EndOfData && len(s.Items) == 15 })
	assert.Equal(t, []int{1, 2, 3}, f.pagesRequested())
}

func TestPagerRefreshOnStart(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(3, 5)
	m := NewMediator(domain.CategoryPopular, s, f, nil, nil)
	require.NoError(t, m.Load(context.Background(), domain.LoadRefresh, noState).Err)
	require.NoError(t, m.Load(context.Background(), domain.LoadAppend, noState).Err)

	p := startPager(t, s, f, PagerConfig{RefreshOnStart: true})
	waitSnapshot(t, p, "refreshed", func(s Snapshot) bool { return len(s.Items) == 5 && idle(s) })
	assert.Equal(t, []int{1, 2, 1}, f.pagesRequested())
}

func TestPagerFailedAppendKeepsItemsUntilRetry(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(2, 10)
	f.setErr(2, fmt.Errorf("timeout: %w", domain.ErrUnreachable))
	p := startPager(t, s, f, PagerConfig{PrefetchDistance: 2})
	waitSnapshot(t, p, "first page", func(s Snapshot) bool { return len(s.Items) == 10 && idle(s) })

	p.Access(9)
	snap := waitSnapshot(t, p, "append failure", func(s Snapshot) bool { return s.Append.Status == domain.LoadFailed })
	assert.Len(t, snap.Items, 10)
	assert.ErrorIs(t, snap.Append.Err, domain.ErrUnreachable)
	assert.Equal(t, domain.LoadIdle, snap.Refresh.Status)

	// Scrolling does not retry on its own
	p.Access(9)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, f.pagesRequested())

	f.setErr(2, nil)
	p.Retry()
	snap = waitSnapshot(t, p, "retried append", func(s Snapshot) bool { return s.EndOfData && idle(s) })
	assert.Len(t, snap.Items, 20)
	assert.Equal(t, domain.LoadIdle, snap.Append.Status)
}

func TestPagerFailedRefreshRetries(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(1, 3)
	f.setErr(1, &domain.ServiceError{StatusCode: 500, Message: "boom"})
	p := startPager(t, s, f, PagerConfig{})

	snap := waitSnapshot(t, p, "refresh failure", func(s Snapshot) bool { return s.Refresh.Status == domain.LoadFailed })
	assert.Empty(t, snap.Items)

	// No items and a failed refresh: scrolling must not append page 1
	p.Access(0)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.callCount())

	f.setErr(1, nil)
	p.Retry()
	snap = waitSnapshot(t, p, "retried refresh", func(s Snapshot) bool { return len(s.Items) == 3 && idle(s) })
	assert.True(t, snap.EndOfData)
}

func TestPagerFailedRefreshSurvivesAppend(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(3, 10)
	m := NewMediator(domain.CategoryPopular, s, f, nil, nil)
	require.NoError(t, m.Load(context.Background(), domain.LoadRefresh, noState).Err)

	f.setErr(1, fmt.Errorf("reset: %w", domain.ErrUnreachable))
	p := startPager(t, s, f, PagerConfig{PrefetchDistance: 2, RefreshOnStart: true})
	waitSnapshot(t, p, "refresh failure", func(s Snapshot) bool { return s.Refresh.Status == domain.LoadFailed })

	// Cached items stay scrollable
	p.Access(9)
	snap := waitSnapshot(t, p, "appended", func(s Snapshot) bool { return len(s.Items) == 20 && idle(s) })
	assert.Equal(t, domain.LoadFailed, snap.Refresh.Status)
	assert.Equal(t, domain.LoadIdle, snap.Append.Status)

	f.setErr(1, nil)
	p.Retry()
	snap = waitSnapshot(t, p, "retried refresh", func(s Snapshot) bool {
		return s.Refresh.Status == domain.LoadIdle && len(s.Items) == 10 && idle(s)
	})
	assert.Equal(t, pageIDs(1, 10), itemIDs(snap.Items))
	assert.Equal(t, []int{1, 1, 2, 1}, f.pagesRequested())
}

func TestPagerRefreshSupersedesAppend(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(3, 4)

	appendStarted := make(chan struct{})
	f.before = func(ctx context.Context, page int) error {
		if page != 2 {
			return nil
		}
		close(appendStarted)
		<-ctx.Done()
		return ctx.Err()
	}

	p := startPager(t, s, f, PagerConfig{PrefetchDistance: 1})
	waitSnapshot(t, p, "first page", func(s Snapshot) bool { return len(s.Items) == 4 && idle(s) })

	p.Access(3)
	select {
	case <-appendStarted:
	case <-time.After(waitTimeout):
		t.Fatal("append never started")
	}

	p.Refresh()
	snap := waitSnapshot(t, p, "refresh done", func(s Snapshot) bool {
		return idle(s) && len(f.pagesRequested()) == 3
	})

	assert.Equal(t, []int{1, 2, 1}, f.pagesRequested())
	assert.Equal(t, pageIDs(1, 4), itemIDs(snap.Items))
	assert.Equal(t, domain.LoadIdle, snap.Append.Status, "cancelled append is not a failure")
	assert.Equal(t, domain.LoadIdle, snap.Refresh.Status)
	assert.Equal(t, 2, *readCursor(t, s, "popular").NextPage)
}

func TestPagerUpdatesLatestWins(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(2, 3)
	p := startPager(t, s, f, PagerConfig{})

	deadline := time.After(waitTimeout)
	for {
		select {
		case snap, ok := <-p.Updates():
			require.True(t, ok)
			if len(snap.Items) == 3 && idle(snap) {
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with the first page")
		}
	}
}

func TestPagerStopsWithContext(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPager(NewMediator(domain.CategoryPopular, s, f, nil, nil), s, PagerConfig{}, nil)
	require.NoError(t, p.Start(ctx))
	assert.ErrorIs(t, p.Start(ctx), ErrAlreadyStarted)

	cancel()
	select {
	case <-p.Done():
	case <-time.After(waitTimeout):
		t.Fatal("pager did not stop")
	}

	// Requests after stop return immediately
	p.Access(0)
	p.Refresh()
	p.Retry()
}
