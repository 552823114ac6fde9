// Package metrics collects and exposes Prometheus metrics for the indexing
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector aggregates the pipeline's operational metrics. A nil *Collector
// is safe to use and records nothing, so tests can pass one without a
// registry.
type Collector struct {
	feedEvents     prometheus.Counter
	feedBatches    prometheus.Counter
	thingsUpdated  prometheus.Counter
	updateErrors   prometheus.Counter
	listingUpserts prometheus.Counter
	slotWrites     prometheus.Counter
	writeRetries   prometheus.Counter
	batchSeconds   prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_feed_events_total",
			Help: "Change feed entries received.",
		}),
		feedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_feed_batches_total",
			Help: "Change feed entries that produced tabulation deltas.",
		}),
		thingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_things_updated_total",
			Help: "Per-thing aggregate updates applied.",
		}),
		updateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_update_errors_total",
			Help: "Per-thing updates skipped due to errors.",
		}),
		listingUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_upserts_total",
			Help: "Ranked listing entries inserted or repositioned.",
		}),
		slotWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_slot_writes_total",
			Help: "Listing slot patches queued for persistence.",
		}),
		writeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_write_retries_total",
			Help: "Failed persistence writes re-queued for retry.",
		}),
		batchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "listings_batch_seconds",
			Help:    "Time spent tabulating and indexing one feed entry.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.feedEvents,
		c.feedBatches,
		c.thingsUpdated,
		c.updateErrors,
		c.listingUpserts,
		c.slotWrites,
		c.writeRetries,
		c.batchSeconds,
	)
	return c
}

// FeedEvent records one change feed entry.
func (c *Collector) FeedEvent() {
	if c != nil {
		c.feedEvents.Inc()
	}
}

// FeedBatch records a feed entry that produced deltas.
func (c *Collector) FeedBatch() {
	if c != nil {
		c.feedBatches.Inc()
	}
}

// ThingUpdated records a successful per-thing aggregate update.
func (c *Collector) ThingUpdated() {
	if c != nil {
		c.thingsUpdated.Inc()
	}
}

// UpdateError records a per-thing update skipped due to an error.
func (c *Collector) UpdateError() {
	if c != nil {
		c.updateErrors.Inc()
	}
}

// ListingUpserts records entries inserted or repositioned in listings.
func (c *Collector) ListingUpserts(n int) {
	if c != nil && n > 0 {
		c.listingUpserts.Add(float64(n))
	}
}

// SlotWrite records one listing slot patch queued for persistence.
func (c *Collector) SlotWrite() {
	if c != nil {
		c.slotWrites.Inc()
	}
}

// WriteRetry records a failed write being re-queued.
func (c *Collector) WriteRetry() {
	if c != nil {
		c.writeRetries.Inc()
	}
}

// BatchDuration records the end-to-end processing time of one feed entry.
func (c *Collector) BatchDuration(d time.Duration) {
	if c != nil {
		c.batchSeconds.Observe(d.Seconds())
	}
}
