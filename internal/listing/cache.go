package listing

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/blackmichael/graph-listings/internal/graph"
)

// DefaultCacheSize bounds how many listings are held in memory at once.
const DefaultCacheSize = 50000

// NodeGetter fetches a single graph node by soul.
type NodeGetter interface {
	Get(ctx context.Context, soul string) (*graph.Node, error)
}

// Cache is a bounded LRU of Listings hydrated on first touch from persisted
// slot records. Concurrent loads of the same listing share one in-flight
// hydration; a failed load is not cached, so later callers retry.
type Cache struct {
	store       NodeGetter
	logger      *slog.Logger
	listingSize int
	maxListings int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recent
	flight  singleflight.Group
}

type cacheEntry struct {
	soul    string
	listing *Listing
}

// NewCache creates a listing cache backed by the given node store.
func NewCache(store NodeGetter, listingSize, maxListings int, logger *slog.Logger) *Cache {
	if listingSize <= 0 {
		listingSize = DefaultCapacity
	}
	if maxListings <= 0 {
		maxListings = DefaultCacheSize
	}
	return &Cache{
		store:       store,
		logger:      logger,
		listingSize: listingSize,
		maxListings: maxListings,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
	}
}

// Get returns the listing for a soul, hydrating it from the store when it is
// not cached. Evicted listings reload from their persisted slot records on
// the next touch.
func (c *Cache) Get(ctx context.Context, soul string) (*Listing, error) {
	c.mu.Lock()
	if elem, ok := c.entries[soul]; ok {
		c.order.MoveToFront(elem)
		l := elem.Value.(*cacheEntry).listing
		c.mu.Unlock()
		return l, nil
	}
	c.mu.Unlock()

	result, err, _ := c.flight.Do(soul, func() (any, error) {
		l, err := c.load(ctx, soul)
		if err != nil {
			return nil, err
		}
		c.add(soul, l)
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load listing %s: %w", soul, err)
	}
	return result.(*Listing), nil
}

// Has reports whether a listing is currently cached.
func (c *Cache) Has(soul string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[soul]
	return ok
}

// Len returns the number of cached listings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) add(soul string, l *Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[soul]; ok {
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxListings {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.soul)
	}

	c.entries[soul] = c.order.PushFront(&cacheEntry{soul: soul, listing: l})
}

// load hydrates a listing from its persisted node. Rows are "{thingId},{sortValue}"
// strings keyed by slot; malformed rows are skipped, and an absent node
// yields an empty listing.
func (c *Cache) load(ctx context.Context, soul string) (*Listing, error) {
	node, err := c.store.Get(ctx, soul)
	if err != nil {
		return nil, err
	}

	l := NewListing(soul, c.listingSize)
	if node == nil {
		return l, nil
	}

	for key := range node.Values {
		row := node.String(key)
		if row == "" {
			continue
		}
		thingID, valueStr, ok := strings.Cut(row, ",")
		thingID = strings.TrimSpace(thingID)
		if !ok || thingID == "" {
			continue
		}
		sortValue, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			continue
		}
		if l.Hydrate(key, thingID, sortValue) == nil {
			c.logger.Warn("skipping inconsistent listing row",
				"listing", soul,
				"key", key,
				"thing", thingID,
			)
		}
	}

	return l, nil
}
