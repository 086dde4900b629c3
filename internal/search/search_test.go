package search

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
)

type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) fire(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, q)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestDebouncerFiresOnlyLastQuery(t *testing.T) {
	var r recorder
	d := NewDebouncer(30*time.Millisecond, r.fire)

	d.Trigger("a")
	d.Trigger("al")
	d.Trigger("ali")
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return len(r.get()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"ali"}, r.get())
	assert.False(t, d.Pending())
}

func TestDebouncerBlankFiresImmediately(t *testing.T) {
	var r recorder
	d := NewDebouncer(50*time.Millisecond, r.fire)

	d.Trigger("alien")
	d.Trigger("   ")
	assert.Equal(t, []string{""}, r.get())
	assert.False(t, d.Pending())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{""}, r.get(), "pending query must be cancelled")
}

func TestDebouncerStop(t *testing.T) {
	var r recorder
	d := NewDebouncer(20*time.Millisecond, r.fire)

	d.Trigger("heat")
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, r.get())
}

func TestDebouncerDefaultDelay(t *testing.T) {
	d := NewDebouncer(0, func(string) {})
	assert.Equal(t, DefaultDebounce, d.delay)
}

func TestFilterMatchesTitles(t *testing.T) {
	items := []domain.ListItem{
		{ItemID: 1, Title: "Heat"},
		{ItemID: 2, Title: "The Godfather"},
		{ItemID: 3, Title: "Alien"},
	}

	matches := Filter("godf", items)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Item.ItemID)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, []int{4, 5, 6, 7}, matches[0].MatchedIndexes)
}

func TestFilterOrdersByScore(t *testing.T) {
	items := []domain.ListItem{
		{ItemID: 1, Title: "Goodfellas"},
		{ItemID: 2, Title: "The Godfather"},
		{ItemID: 3, Title: "The Godfather Part II"},
		{ItemID: 4, Title: "Gone Girl"},
	}

	matches := Filter("go", items)
	require.Len(t, matches, 4)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestFilterIsCaseInsensitive(t *testing.T) {
	items := []domain.ListItem{{ItemID: 7, Title: "ALIEN"}}
	matches := Filter("Alien", items)
	require.Len(t, matches, 1)
	assert.Equal(t, 7, matches[0].Item.ItemID)
}

func TestFilterBlankQuery(t *testing.T) {
	assert.Nil(t, Filter("  ", []domain.ListItem{{Title: "Alien"}}))
	assert.Nil(t, Filter("alien", nil))
}
