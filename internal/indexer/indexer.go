// Package indexer maintains ranked listings from tabulated scores and
// persists their slot records.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/listing"
	"github.com/blackmichael/graph-listings/internal/metrics"
	"github.com/blackmichael/graph-listings/internal/tabulator"
)

// maxConcurrentListings bounds how many listings of one batch update at once.
const maxConcurrentListings = 16

// GraphWriter queues graph patches for write-behind persistence.
type GraphWriter interface {
	QueueDiff(data graph.Data) graph.Data
}

// Indexer applies listing updates to ranked listings and writes the
// resulting slot diffs under its own identity.
type Indexer struct {
	listings *listing.Cache
	writer   GraphWriter
	indexer  string
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewIndexer creates an Indexer over the given listing cache.
func NewIndexer(listings *listing.Cache, writer GraphWriter, indexer string, logger *slog.Logger, mc *metrics.Collector) *Indexer {
	return &Indexer{
		listings: listings,
		writer:   writer,
		indexer:  indexer,
		logger:   logger,
		metrics:  mc,
	}
}

// ProcessUpdates applies a batch of listing updates. Updates for one listing
// apply in their submitted order; different listings update in parallel.
// Failures are logged per listing and never fail the batch.
func (ix *Indexer) ProcessUpdates(ctx context.Context, updates []tabulator.ListingUpdate) {
	if len(updates) == 0 {
		return
	}

	grouped := make(map[string][]tabulator.ListingUpdate)
	for _, up := range updates {
		grouped[up.ListingSoul] = append(grouped[up.ListingSoul], up)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentListings)

	for soul, group := range grouped {
		soul, group := soul, group
		g.Go(func() error {
			if err := ix.processListing(ctx, soul, group); err != nil {
				ix.logger.Error("failed to update listing", "listing", soul, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

func (ix *Indexer) processListing(ctx context.Context, soul string, group []tabulator.ListingUpdate) error {
	l, err := ix.listings.Get(ctx, soul)
	if err != nil {
		return err
	}

	changed := 0
	for _, up := range group {
		entry := l.Upsert(up.ThingID, up.SortValue)
		if entry == nil {
			continue
		}
		changed++

		patch := graph.NewNode(soul)
		patch.Set(entry.Key, fmt.Sprintf("%s,%v", entry.ThingID, entry.SortValue), float64(up.Timestamp))
		ix.writer.QueueDiff(graph.Data{soul: patch})
		ix.metrics.SlotWrite()
	}

	ix.metrics.ListingUpserts(changed)
	return nil
}

// ThingIDs serves the listing read path: ordered thing ids for a listing
// path and sort, with pagination and an optional per-thing filter.
func (ix *Indexer) ThingIDs(ctx context.Context, path, sortName string, limit, offset int, filter func(thingID string) bool) ([]string, error) {
	soul := graph.ListingSoul(ix.indexer, path+"/"+sortName)
	l, err := ix.listings.Get(ctx, soul)
	if err != nil {
		return nil, err
	}
	return l.ThingIDs(limit, offset, filter), nil
}
