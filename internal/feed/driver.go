// Package feed consumes the graph change feed and sequences each entry
// through tabulation and indexing, checkpointing a resumable cursor.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/graph-listings/internal/changes"
	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/indexer"
	"github.com/blackmichael/graph-listings/internal/metrics"
	"github.com/blackmichael/graph-listings/internal/store"
	"github.com/blackmichael/graph-listings/internal/tabulator"
)

const (
	// checkpointRole names this pipeline's cursor field in the oracles node.
	checkpointRole = "indexer"

	reconnectDelay = 5 * time.Second
	statsInterval  = 30 * time.Second
)

// Driver subscribes to the change feed and drives each entry through the
// tabulator and indexer in order, advancing the persisted cursor only after
// an entry's derived writes are queued. Reprocessing after a crash between
// processing and checkpointing is safe for everything except raw vote
// replays, which the feed must deliver exactly once.
type Driver struct {
	url       string
	tabulator *tabulator.Tabulator
	indexer   *indexer.Indexer
	store     store.Store
	logger    *slog.Logger
	metrics   *metrics.Collector

	lastKey string
}

// NewDriver creates a change feed driver.
func NewDriver(
	feedURL string,
	tab *tabulator.Tabulator,
	ix *indexer.Indexer,
	st store.Store,
	logger *slog.Logger,
	mc *metrics.Collector,
) *Driver {
	return &Driver{
		url:       feedURL,
		tabulator: tab,
		indexer:   ix,
		store:     st,
		logger:    logger,
		metrics:   mc,
	}
}

// Start connects to the change feed and processes entries until the context
// is cancelled. It reconnects on transient errors, resuming from the last
// persisted cursor.
func (d *Driver) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := d.subscribe(ctx); err != nil {
				d.logger.Error("change feed connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (d *Driver) subscribe(ctx context.Context) error {
	cursor, err := d.Checkpoint(ctx)
	if err != nil {
		d.logger.Warn("failed to load checkpoint, starting from live", "error", err)
	}
	d.lastKey = cursor

	d.logger.Info("connecting to change feed", "url", d.url, "from", cursor)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeRequest{ID: uuid.NewString(), From: cursor}); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	d.logger.Info("connected to change feed")

	var eventsReceived, batchesProcessed, updatesApplied int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		key, diff, err := parseEvent(message)
		if err != nil {
			d.logger.Error("failed to parse feed event", "error", err)
			continue
		}

		eventsReceived++
		d.metrics.FeedEvent()

		// Entries at or before the cursor were already processed.
		if key == "" || key <= d.lastKey {
			continue
		}

		updates, err := d.Process(ctx, key, diff)
		if err != nil {
			d.logger.Error("failed to process feed entry", "key", key, "error", err)
			continue
		}
		d.lastKey = key
		if updates > 0 {
			batchesProcessed++
			updatesApplied += int64(updates)
		}

		if time.Since(lastStatsLog) >= statsInterval {
			d.logger.Info("change feed stats",
				"events_received", eventsReceived,
				"batches_processed", batchesProcessed,
				"updates_applied", updatesApplied,
			)
			lastStatsLog = time.Now()
		}
	}
}

// Process runs one feed entry through the pipeline: interpret the diff,
// tabulate the deltas, apply the listing updates, then checkpoint the
// cursor. Returns the number of listing updates derived.
func (d *Driver) Process(ctx context.Context, key string, diff graph.Data) (int, error) {
	started := time.Now()

	// Raw feed data lands in the store before tabulation so aggregate
	// reloads see the nodes this entry introduced.
	if err := d.store.Put(ctx, diff); err != nil {
		return 0, fmt.Errorf("persist feed entry: %w", err)
	}

	batch := changes.DescribeDiff(diff)
	if batch == nil {
		return 0, d.writeCheckpoint(ctx, key)
	}
	d.metrics.FeedBatch()

	updates := d.tabulator.ProcessChanges(ctx, batch)
	d.indexer.ProcessUpdates(ctx, updates)

	if err := d.writeCheckpoint(ctx, key); err != nil {
		return len(updates), err
	}

	d.metrics.BatchDuration(time.Since(started))
	d.logger.Debug("processed feed entry",
		"key", key,
		"things", len(batch),
		"listings", len(updates),
		"duration", time.Since(started),
	)
	return len(updates), nil
}

// Checkpoint returns the persisted resume cursor, or "" when none exists.
func (d *Driver) Checkpoint(ctx context.Context) (string, error) {
	node, err := d.store.Get(ctx, graph.OraclesSoul)
	if err != nil || node == nil {
		return "", err
	}
	return node.String(checkpointRole), nil
}

func (d *Driver) writeCheckpoint(ctx context.Context, key string) error {
	node := graph.NewNode(graph.OraclesSoul)
	node.Set(checkpointRole, key, float64(time.Now().UnixMilli()))
	if err := d.store.Put(ctx, graph.Data{graph.OraclesSoul: node}); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}
