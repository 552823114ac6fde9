package tabulator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/graph-listings/internal/changes"
	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/ranking"
	"github.com/blackmichael/graph-listings/internal/store"
)

const testTS = int64(1700000000000)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSubmission(t *testing.T, st *store.MemStore) string {
	t.Helper()
	data, id := graph.ThingGraph(&graph.ThingRecord{
		Kind:      "submission",
		Topic:     "news",
		Title:     "hello",
		Timestamp: testTS,
	})
	require.NoError(t, st.Put(context.Background(), data))
	return id
}

func TestUpdateAppliesVoteDelta(t *testing.T) {
	st := store.NewMemStore()
	id := seedSubmission(t, st)
	ms := NewMetaStore(st, "tab", "ix", 0, testLogger())

	result, err := ms.Update(context.Background(), id, &changes.Delta{
		Up:      3,
		Score:   3,
		Created: testTS,
		Updated: testTS,
	}, testTS+1000)
	require.NoError(t, err)

	assert.Equal(t, float64(3), result.Changed["up"])
	assert.Equal(t, float64(3), result.Changed["score"])
	assert.NotContains(t, result.Changed, "down")
	assert.NotContains(t, result.Changed, "comment")

	// Anonymous submission in "news" ranks in two paths, once per sort.
	assert.Len(t, result.ListingUpdates, 2*len(ranking.SortNames))

	souls := make(map[string]float64)
	for _, up := range result.ListingUpdates {
		souls[up.ListingSoul] = up.SortValue
		assert.Equal(t, id, up.ThingID)
	}
	require.Contains(t, souls, graph.ListingSoul("ix", "/t/news/top"))
	assert.Equal(t, float64(-3), souls[graph.ListingSoul("ix", "/t/news/top")])
	assert.Contains(t, souls, graph.ListingSoul("ix", "/t/all/new"))
}

func TestUpdateAccumulatesAcrossCalls(t *testing.T) {
	st := store.NewMemStore()
	id := seedSubmission(t, st)
	ms := NewMetaStore(st, "tab", "ix", 0, testLogger())
	ctx := context.Background()

	_, err := ms.Update(ctx, id, &changes.Delta{Up: 3, Score: 3}, testTS+1000)
	require.NoError(t, err)

	result, err := ms.Update(ctx, id, &changes.Delta{Up: 2, Down: 1, Score: 1}, testTS+2000)
	require.NoError(t, err)

	assert.Equal(t, float64(5), result.Changed["up"])
	assert.Equal(t, float64(1), result.Changed["down"])
	assert.Equal(t, float64(4), result.Changed["score"])
}

func TestUpdateLoadsPersistedCounters(t *testing.T) {
	st := store.NewMemStore()
	id := seedSubmission(t, st)
	ctx := context.Background()

	counts := graph.NewNode(graph.VoteCountsSoul(id, "tab"))
	counts.Set("up", float64(7), float64(testTS))
	counts.Set("down", float64(2), float64(testTS))
	counts.Set("comment", float64(3), float64(testTS))
	require.NoError(t, st.Put(ctx, graph.Data{counts.Soul: counts}))

	ms := NewMetaStore(st, "tab", "ix", 0, testLogger())

	result, err := ms.Update(ctx, id, &changes.Delta{}, testTS+1000)
	require.NoError(t, err)
	assert.Empty(t, result.Changed)

	for _, up := range result.ListingUpdates {
		if up.ListingSoul == graph.ListingSoul("ix", "/t/news/top") {
			assert.Equal(t, float64(-5), up.SortValue)
			return
		}
	}
	t.Fatal("expected a top sort update for /t/news")
}

func TestUpdateMergesCommands(t *testing.T) {
	st := store.NewMemStore()
	id := seedSubmission(t, st)
	ms := NewMetaStore(st, "tab", "ix", 0, testLogger())

	cmd := changes.BuildCommandMap("modKey", "comment1", "!tag funny", float64(testTS))
	result, err := ms.Update(context.Background(), id, &changes.Delta{Commands: cmd}, testTS+1000)
	require.NoError(t, err)

	encoded, ok := result.Changed["commands"].(string)
	require.True(t, ok)
	decoded := changes.ParseCommandMap(encoded)
	require.NotNil(t, decoded)
	assert.NotNil(t, decoded["modKey"])

	// Tagged things also rank in the tagging author's commented listing.
	souls := make(map[string]bool)
	for _, up := range result.ListingUpdates {
		souls[up.ListingSoul] = true
	}
	assert.True(t, souls[graph.ListingSoul("ix", "/user/modKey/commented/new")])
}

func TestUpdateDefaultsForUnknownThing(t *testing.T) {
	ms := NewMetaStore(store.NewMemStore(), "tab", "ix", 0, testLogger())

	result, err := ms.Update(context.Background(), "missing", &changes.Delta{
		Up:      1,
		Score:   1,
		Created: testTS,
		Updated: testTS,
	}, testTS+1000)
	require.NoError(t, err)

	// Nothing persisted about the thing yet: it tabulates as an anonymous
	// submission in the default topic.
	souls := make(map[string]bool)
	for _, up := range result.ListingUpdates {
		souls[up.ListingSoul] = true
	}
	assert.True(t, souls[graph.ListingSoul("ix", "/t/whatever/new")])
	assert.True(t, souls[graph.ListingSoul("ix", "/t/all/new")])
}

func TestPaths(t *testing.T) {
	st := store.NewMemStore()
	id := seedSubmission(t, st)
	ms := NewMetaStore(st, "tab", "ix", 0, testLogger())

	paths, err := ms.Paths(context.Background(), id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/t/news", "/t/all"}, paths)
}
