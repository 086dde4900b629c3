package paging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/flickpick/internal/domain"
)

type searchCall struct {
	query string
	page  int
}

func fakeSearch(totalPages int, calls *[]searchCall, fail map[int]error) SearchFunc {
	return func(_ context.Context, query string, page int) (domain.MoviePage, error) {
		*calls = append(*calls, searchCall{query, page})
		if err := fail[page]; err != nil {
			return domain.MoviePage{}, err
		}
		return moviePage(page, totalPages, 2), nil
	}
}

func TestSearchPagerWalksPages(t *testing.T) {
	var calls []searchCall
	sp := NewSearchPager("  alien ", fakeSearch(2, &calls, nil))
	ctx := context.Background()

	assert.Equal(t, "alien", sp.Query())
	assert.False(t, sp.EndOfData())

	end, err := sp.LoadNext(ctx)
	require.NoError(t, err)
	assert.False(t, end)
	assert.Nil(t, sp.PrevPage())

	end, err = sp.LoadNext(ctx)
	require.NoError(t, err)
	assert.True(t, end)
	require.NotNil(t, sp.PrevPage())
	assert.Equal(t, 1, *sp.PrevPage())

	end, err = sp.LoadNext(ctx)
	require.NoError(t, err)
	assert.True(t, end)

	assert.Equal(t, []searchCall{{"alien", 1}, {"alien", 2}}, calls)
	assert.Len(t, sp.Items(), 4)
	assert.True(t, sp.EndOfData())
}

func TestSearchPagerBlankQuery(t *testing.T) {
	var calls []searchCall
	sp := NewSearchPager("   ", fakeSearch(5, &calls, nil))

	assert.True(t, sp.EndOfData())
	end, err := sp.LoadNext(context.Background())
	require.NoError(t, err)
	assert.True(t, end)
	assert.Empty(t, sp.Items())
	assert.Empty(t, calls)
}

func TestSearchPagerRetriesFailedPage(t *testing.T) {
	var calls []searchCall
	fail := map[int]error{2: domain.ErrUnreachable}
	sp := NewSearchPager("dune", fakeSearch(3, &calls, fail))
	ctx := context.Background()

	_, err := sp.LoadNext(ctx)
	require.NoError(t, err)

	_, err = sp.LoadNext(ctx)
	require.ErrorIs(t, err, domain.ErrUnreachable)
	assert.Len(t, sp.Items(), 2)

	delete(fail, 2)
	_, err = sp.LoadNext(ctx)
	require.NoError(t, err)
	assert.Len(t, sp.Items(), 4)
	assert.Equal(t, []searchCall{{"dune", 1}, {"dune", 2}, {"dune", 2}}, calls)
}

func TestSearchPagerReset(t *testing.T) {
	var calls []searchCall
	sp := NewSearchPager("heat", fakeSearch(1, &calls, nil))
	ctx := context.Background()

	_, err := sp.LoadNext(ctx)
	require.NoError(t, err)
	assert.True(t, sp.EndOfData())

	sp.Reset()
	assert.Empty(t, sp.Items())
	assert.False(t, sp.EndOfData())

	_, err = sp.LoadNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []searchCall{{"heat", 1}, {"heat", 1}}, calls)
}
