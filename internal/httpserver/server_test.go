package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/graph-listings/internal/config"
	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/indexer"
	"github.com/blackmichael/graph-listings/internal/listing"
	"github.com/blackmichael/graph-listings/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemStore()
	soul := graph.ListingSoul("ix", "/t/news/new")
	node := graph.NewNode(soul)
	node.Set("1", "thing-a,5", 100)
	node.Set("2", "thing-b,3", 100)
	require.NoError(t, st.Put(context.Background(), graph.Data{soul: node}))

	cache := listing.NewCache(st, 100, 100, logger)
	ix := indexer.NewIndexer(cache, noopWriter{}, "ix", logger, nil)

	cfg := &config.Config{Port: 0, IndexerID: "ix"}
	return NewServer(cfg, ix, prometheus.NewRegistry(), logger)
}

type noopWriter struct{}

func (noopWriter) QueueDiff(data graph.Data) graph.Data { return data }

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListingEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/listings?path=/t/news&sort=new")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Path   string   `json:"path"`
		Sort   string   `json:"sort"`
		Things []string `json:"things"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "/t/news", body.Path)
	assert.Equal(t, "new", body.Sort)
	assert.Equal(t, []string{"thing-b", "thing-a"}, body.Things)
}

func TestListingDefaultsToNewSort(t *testing.T) {
	rec := get(t, newTestServer(t), "/listings?path=/t/news")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sort string `json:"sort"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "new", body.Sort)
}

func TestListingPagination(t *testing.T) {
	rec := get(t, newTestServer(t), "/listings?path=/t/news&sort=new&limit=1&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Things []string `json:"things"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"thing-a"}, body.Things)
}

func TestListingValidation(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings?path=/t/news&sort=bogus").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings?path=/t/news&limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings?path=/t/news&limit=500").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/listings?path=/t/news&offset=-1").Code)
}

func TestUnknownListingIsEmpty(t *testing.T) {
	rec := get(t, newTestServer(t), "/listings?path=/t/nothing&sort=new")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Things []string `json:"things"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Things)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
