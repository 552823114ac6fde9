package listing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheHydratesFromStore(t *testing.T) {
	st := store.NewMemStore()
	soul := graph.ListingSoul("ix", "/t/news/new")

	node := graph.NewNode(soul)
	node.Set("1", "a,5", 100)
	node.Set("2", "b,3", 100)
	require.NoError(t, st.Put(context.Background(), graph.Data{soul: node}))

	c := NewCache(st, 10, 10, testLogger())

	l, err := c.Get(context.Background(), soul)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, l.ThingIDs(0, 0, nil))

	entry := l.Get("a")
	require.NotNil(t, entry)
	assert.Equal(t, "1", entry.Key)
}

func TestCacheSkipsMalformedRows(t *testing.T) {
	st := store.NewMemStore()
	soul := graph.ListingSoul("ix", "/t/news/new")

	node := graph.NewNode(soul)
	node.Set("1", "a,5", 100)
	node.Set("2", "no-comma", 100)
	node.Set("3", ",7", 100)
	node.Set("4", "b,not-a-number", 100)
	require.NoError(t, st.Put(context.Background(), graph.Data{soul: node}))

	c := NewCache(st, 10, 10, testLogger())

	l, err := c.Get(context.Background(), soul)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, l.ThingIDs(0, 0, nil))
}

func TestCacheMissYieldsEmptyListing(t *testing.T) {
	c := NewCache(store.NewMemStore(), 10, 10, testLogger())

	l, err := c.Get(context.Background(), graph.ListingSoul("ix", "/t/empty/new"))
	require.NoError(t, err)
	assert.Zero(t, l.Len())
}

func TestCacheReturnsSameListing(t *testing.T) {
	c := NewCache(store.NewMemStore(), 10, 10, testLogger())
	soul := graph.ListingSoul("ix", "/t/news/new")

	first, err := c.Get(context.Background(), soul)
	require.NoError(t, err)
	second, err := c.Get(context.Background(), soul)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(store.NewMemStore(), 10, 2, testLogger())
	ctx := context.Background()

	souls := make([]string, 3)
	for i := range souls {
		souls[i] = graph.ListingSoul("ix", fmt.Sprintf("/t/topic%d/new", i))
		_, err := c.Get(ctx, souls[i])
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Has(souls[0]))
	assert.True(t, c.Has(souls[1]))
	assert.True(t, c.Has(souls[2]))
}

func TestEvictedListingReloadsFromStore(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	soul := graph.ListingSoul("ix", "/t/news/new")

	node := graph.NewNode(soul)
	node.Set("1", "a,5", 100)
	require.NoError(t, st.Put(ctx, graph.Data{soul: node}))

	c := NewCache(st, 10, 1, testLogger())

	l, err := c.Get(ctx, soul)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	// Push the listing out, then touch it again.
	_, err = c.Get(ctx, graph.ListingSoul("ix", "/t/other/new"))
	require.NoError(t, err)
	assert.False(t, c.Has(soul))

	reloaded, err := c.Get(ctx, soul)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reloaded.ThingIDs(0, 0, nil))
}
