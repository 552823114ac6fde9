// Package batch coalesces graph patches into interval-flushed writes with
// retry on failure.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/metrics"
	"github.com/blackmichael/graph-listings/internal/store"
)

// DefaultInterval is the flush cadence when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Writer is a write-behind queue of graph patches. Queued patches diff
// against pending state so repeated writes of the same field coalesce, and a
// failed flush re-queues the affected souls for the next interval.
type Writer struct {
	store    store.Putter
	interval time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Collector

	mu      sync.Mutex
	pending graph.Data
}

// NewWriter creates a Writer flushing to the given store.
func NewWriter(st store.Putter, interval time.Duration, logger *slog.Logger, mc *metrics.Collector) *Writer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Writer{
		store:    st,
		interval: interval,
		// Flushes are paced so a retry loop cannot hammer a struggling store.
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
		metrics: mc,
		pending: make(graph.Data),
	}
}

// QueueDiff merges a patch into the pending batch and returns the portion
// that advanced pending state (nil when everything was already queued newer).
func (w *Writer) QueueDiff(data graph.Data) graph.Data {
	w.mu.Lock()
	defer w.mu.Unlock()

	diff := graph.Diff(data, w.pending)
	if diff != nil {
		graph.MergeData(w.pending, diff)
	}
	return diff
}

// Run flushes the pending batch on an interval until ctx is cancelled, then
// performs one final flush.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-ctx.Done():
			w.Flush(context.Background())
			return
		}
	}
}

// Flush writes the current batch soul by soul. A failed soul is re-queued
// for the next interval, diffed against anything queued for it meanwhile so
// retries never regress newer writes.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(graph.Data)
	w.mu.Unlock()

	if err := w.limiter.Wait(ctx); err != nil {
		w.requeue(batch)
		return
	}

	for soul, node := range batch {
		if err := w.store.Put(ctx, graph.Data{soul: node}); err != nil {
			w.logger.Error("failed to persist node, re-queuing", "soul", soul, "error", err)
			w.metrics.WriteRetry()
			w.requeue(graph.Data{soul: node})
		}
	}
}

func (w *Writer) requeue(data graph.Data) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if diff := graph.Diff(data, w.pending); diff != nil {
		graph.MergeData(w.pending, diff)
	}
}
