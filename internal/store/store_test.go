package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/store/storetest"
)

func openTemp(t *testing.T) domain.Store {
	t.Helper()
	s, err := OpenFile(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPageStoreContract(t *testing.T) {
	storetest.Run(t, openTemp)
}

func TestOpenSeparatesServers(t *testing.T) {
	base := t.TempDir()

	a, err := Open(base, "https://api.themoviedb.org/3/")
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(base, "http://localhost:8080")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Update(context.Background(), func(tx domain.PageTx) error {
		return tx.InsertItems([]domain.ListItem{storetest.Item(domain.CategoryPopular, 1, 1)})
	}))

	items, err := domain.ItemsByCategory(context.Background(), b, domain.CategoryPopular)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHashServerURLNormalizes(t *testing.T) {
	assert.Equal(t,
		hashServerURL("https://API.themoviedb.org/3/"),
		hashServerURL("https://api.themoviedb.org/3"))
}

func TestInsertRejectsEmptyCategory(t *testing.T) {
	s := openTemp(t)
	err := s.Update(context.Background(), func(tx domain.PageTx) error {
		return tx.InsertItems([]domain.ListItem{{ItemID: 1, Page: 1}})
	})
	assert.ErrorIs(t, err, ErrEmptyCategory)
}

func TestNotifierCancelIsIdempotent(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe("popular")
	cancel()
	cancel()

	n.Notify(map[string]struct{}{"popular": {}})
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received a signal")
	default:
	}
	assert.Empty(t, n.subs)
}
