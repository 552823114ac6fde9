package tabulator

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/graph-listings/internal/changes"
	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/metrics"
	"github.com/blackmichael/graph-listings/internal/store"
)

// maxConcurrentThings bounds how many things of one batch tabulate at once.
const maxConcurrentThings = 16

// GraphWriter queues graph patches for write-behind persistence. It returns
// the portion of the patch that actually advanced pending state.
type GraphWriter interface {
	QueueDiff(data graph.Data) graph.Data
}

// Tabulator applies change batches to per-thing aggregates and persists the
// moved counters under its own identity.
type Tabulator struct {
	meta      *MetaStore
	writer    GraphWriter
	tabulator string
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewTabulator creates a Tabulator. The tabulator identity keys the counter
// records it owns.
func NewTabulator(st store.Getter, writer GraphWriter, tabulator, indexer string, metaCacheSize int, logger *slog.Logger, mc *metrics.Collector) *Tabulator {
	return &Tabulator{
		meta:      NewMetaStore(st, tabulator, indexer, metaCacheSize, logger),
		writer:    writer,
		tabulator: tabulator,
		logger:    logger,
		metrics:   mc,
	}
}

// Meta exposes the underlying aggregate store.
func (t *Tabulator) Meta() *MetaStore { return t.meta }

// ProcessChanges applies every thing's delta and returns the accumulated
// listing updates. Things process in parallel with no cross-thing ordering;
// one thing's failure is logged and excluded without failing the batch.
func (t *Tabulator) ProcessChanges(ctx context.Context, batch changes.Changes) []ListingUpdate {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()

	var mu sync.Mutex
	var updates []ListingUpdate

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentThings)

	for thingID, delta := range batch {
		thingID, delta := thingID, delta
		g.Go(func() error {
			itemUpdates, err := t.processChange(ctx, thingID, delta, now)
			if err != nil {
				t.logger.Error("failed to tabulate thing", "thing", thingID, "error", err)
				t.metrics.UpdateError()
				return nil
			}
			t.metrics.ThingUpdated()
			mu.Lock()
			updates = append(updates, itemUpdates...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return updates
}

func (t *Tabulator) processChange(ctx context.Context, thingID string, delta *changes.Delta, now int64) ([]ListingUpdate, error) {
	result, err := t.meta.Update(ctx, thingID, delta, now)
	if err != nil {
		return nil, err
	}

	if len(result.Changed) > 0 {
		soul := graph.VoteCountsSoul(thingID, t.tabulator)
		patch := graph.NewNode(soul)
		for field, value := range result.Changed {
			patch.Set(field, value, float64(now))
		}
		t.writer.QueueDiff(graph.Data{soul: patch})
	}

	return result.ListingUpdates, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func lower(s string) string {
	return strings.ToLower(s)
}

// domainFromURL extracts the host of a submission URL, dropping a leading
// "www.".
func domainFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := parsed.Host
	if host == "" {
		host = parsed.Scheme
	}
	return strings.TrimPrefix(host, "www.")
}
