// Package tabulator aggregates vote and reply deltas into per-thing counter
// records and derives the listing updates each change implies.
package tabulator

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/blackmichael/graph-listings/internal/changes"
	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/listing"
	"github.com/blackmichael/graph-listings/internal/ranking"
	"github.com/blackmichael/graph-listings/internal/store"
)

// DefaultMetaCacheSize bounds the in-memory aggregate cache.
const DefaultMetaCacheSize = 10000

// Counts are a thing's running tabulation counters. Score is its own
// counter, accumulated from score deltas; the sort formulas derive up-down
// independently.
type Counts struct {
	Up       int
	Down     int
	Score    int
	Comment  int
	Replies  int
	Commands changes.CommandMap
}

// Record is the cached per-thing aggregate. It is derived state: losing it
// only costs a reload from the persisted thing, vote and counter nodes.
type Record struct {
	Created int64
	Updated int64

	Kind            string
	Topic           string
	Domain          string
	AuthorID        string
	OpID            string
	ReplyToID       string
	ReplyToAuthorID string
	ReplyToKind     string
	IsCommand       bool

	Counts Counts
	Scores map[string]float64
}

// ListingUpdate instructs the indexer to (re)rank one thing in one listing.
type ListingUpdate struct {
	ListingSoul string
	ThingID     string
	SortValue   float64
	Timestamp   int64
}

// UpdateResult reports what an aggregate update changed.
type UpdateResult struct {
	// Changed holds only the counter fields this update moved, ready to be
	// persisted as a patch.
	Changed map[string]any

	// ListingUpdates covers every sort of every listing the thing belongs
	// to. Deduplication is the ranked listing's job.
	ListingUpdates []ListingUpdate
}

// MetaStore caches per-thing aggregates with LRU eviction and applies deltas
// to them. Concurrent loads of one thing share a single in-flight fetch, and
// updates to one thing are serialized on a per-record mutex.
type MetaStore struct {
	store     store.Getter
	tabulator string
	indexer   string
	logger    *slog.Logger
	capacity  int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	flight  singleflight.Group
}

type metaEntry struct {
	thingID string
	mu      sync.Mutex
	record  *Record
}

// NewMetaStore creates a MetaStore reading through the given node store.
// The tabulator identity selects which counter records to read; the indexer
// identity owns the listing souls emitted in updates.
func NewMetaStore(st store.Getter, tabulator, indexer string, capacity int, logger *slog.Logger) *MetaStore {
	if capacity <= 0 {
		capacity = DefaultMetaCacheSize
	}
	return &MetaStore{
		store:     st,
		tabulator: tabulator,
		indexer:   indexer,
		logger:    logger,
		capacity:  capacity,
		entries:   make(map[string]*list.Element),
		order:     list.New(),
	}
}

// Update applies a delta to a thing's aggregate and returns the changed
// counters plus the listing updates the new scores imply.
func (m *MetaStore) Update(ctx context.Context, thingID string, delta *changes.Delta, now int64) (*UpdateResult, error) {
	entry, err := m.fetch(ctx, thingID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	rec := entry.record

	if rec.Created == 0 {
		if delta.Created != 0 {
			rec.Created = delta.Created
		} else {
			rec.Created = now
		}
	}

	if delta.Updated > rec.Updated || rec.Updated == 0 {
		if delta.Updated != 0 {
			rec.Updated = delta.Updated
		} else {
			rec.Updated = now
		}
	}

	changed := make(map[string]any)

	if delta.Commands != nil {
		rec.Counts.Commands = changes.MergeLeft(rec.Counts.Commands, delta.Commands)
		changed["commands"] = changes.EncodeCommandMap(rec.Counts.Commands)
	}

	applyCount(changed, "up", &rec.Counts.Up, delta.Up)
	applyCount(changed, "down", &rec.Counts.Down, delta.Down)
	applyCount(changed, "score", &rec.Counts.Score, delta.Score)
	applyCount(changed, "comment", &rec.Counts.Comment, delta.Comment)
	applyCount(changed, "replies", &rec.Counts.Replies, delta.Replies)

	rec.Scores = ranking.Scores(ranking.Aggregate{
		Created: rec.Created,
		Updated: rec.Updated,
		Up:      rec.Counts.Up,
		Down:    rec.Counts.Down,
		Comment: rec.Counts.Comment,
	}, now)

	paths := listing.PathsFor(m.thingInfo(rec))

	updates := make([]ListingUpdate, 0, len(paths)*len(rec.Scores))
	for sortName, sortValue := range rec.Scores {
		for _, path := range paths {
			updates = append(updates, ListingUpdate{
				ListingSoul: graph.ListingSoul(m.indexer, path+"/"+sortName),
				ThingID:     thingID,
				SortValue:   sortValue,
				Timestamp:   now,
			})
		}
	}

	return &UpdateResult{Changed: changed, ListingUpdates: updates}, nil
}

// Paths returns the listing paths a thing currently belongs to.
func (m *MetaStore) Paths(ctx context.Context, thingID string) ([]string, error) {
	entry, err := m.fetch(ctx, thingID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return listing.PathsFor(m.thingInfo(entry.record)), nil
}

func (m *MetaStore) thingInfo(rec *Record) listing.ThingInfo {
	return listing.ThingInfo{
		Kind:            rec.Kind,
		Topic:           rec.Topic,
		Domain:          rec.Domain,
		AuthorID:        rec.AuthorID,
		OpID:            rec.OpID,
		ReplyToID:       rec.ReplyToID,
		ReplyToAuthorID: rec.ReplyToAuthorID,
		ReplyToKind:     rec.ReplyToKind,
		IsCommand:       rec.IsCommand,
		TaggedBy:        rec.Counts.Commands.Authors(),
	}
}

func applyCount(changed map[string]any, field string, total *int, delta int) {
	if delta == 0 {
		return
	}
	*total += delta
	changed[field] = float64(*total)
}

// fetch returns the cached entry for a thing, loading and caching it on a
// miss. Load failures propagate to every waiter and leave nothing cached, so
// the next caller retries.
func (m *MetaStore) fetch(ctx context.Context, thingID string) (*metaEntry, error) {
	m.mu.Lock()
	if elem, ok := m.entries[thingID]; ok {
		m.order.MoveToFront(elem)
		entry := elem.Value.(*metaEntry)
		m.mu.Unlock()
		return entry, nil
	}
	m.mu.Unlock()

	result, err, _ := m.flight.Do(thingID, func() (any, error) {
		rec, err := m.loadRecord(ctx, thingID)
		if err != nil {
			return nil, err
		}
		entry := &metaEntry{thingID: thingID, record: rec}
		m.add(entry)
		return entry, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load aggregate for %s: %w", thingID, err)
	}
	return result.(*metaEntry), nil
}

func (m *MetaStore) add(entry *metaEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[entry.thingID]; ok {
		m.order.MoveToFront(elem)
		return
	}

	for len(m.entries) >= m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*metaEntry)
		m.order.Remove(oldest)
		delete(m.entries, evicted.thingID)
	}

	m.entries[entry.thingID] = m.order.PushFront(entry)
}

// loadRecord reconstructs the aggregate from the persisted thing, content,
// parent and counter nodes. Absent nodes yield a zeroed, rebuildable record;
// only store failures are errors.
func (m *MetaStore) loadRecord(ctx context.Context, thingID string) (*Record, error) {
	countsNode, err := m.store.Get(ctx, graph.VoteCountsSoul(thingID, m.tabulator))
	if err != nil {
		return nil, fmt.Errorf("fetch counts: %w", err)
	}

	thingNode, err := m.store.Get(ctx, graph.ThingSoul(thingID))
	if err != nil {
		return nil, fmt.Errorf("fetch thing: %w", err)
	}

	var dataNode, replyToNode *graph.Node
	if soul := thingNode.Edge("data"); soul != "" {
		if dataNode, err = m.store.Get(ctx, soul); err != nil {
			return nil, fmt.Errorf("fetch thing data: %w", err)
		}
	}
	if soul := thingNode.Edge("replyTo"); soul != "" {
		if replyToNode, err = m.store.Get(ctx, soul); err != nil {
			return nil, fmt.Errorf("fetch parent thing: %w", err)
		}
	}

	return nodesToRecord(thingNode, dataNode, countsNode, replyToNode, time.Now().UnixMilli()), nil
}

func nodesToRecord(thingNode, dataNode, countsNode, replyToNode *graph.Node, now int64) *Record {
	created := int64(thingNode.Float("timestamp"))
	if created == 0 {
		created = now
	}

	updated := created
	if countsNode != nil {
		if state, ok := countsNode.State["comment"]; ok && int64(state) > updated {
			updated = int64(state)
		}
	}

	topic := firstNonEmpty(topicFromEdge(thingNode), dataNode.String("topic"), "whatever")

	rec := &Record{
		Created:         created,
		Updated:         updated,
		Kind:            firstNonEmpty(thingNode.String("kind"), dataNode.String("kind"), "submission"),
		Topic:           lower(topic),
		Domain:          lower(domainOf(dataNode)),
		AuthorID:        firstNonEmpty(authorFromEdge(thingNode), dataNode.String("authorId")),
		OpID:            firstNonEmpty(thingIDFromEdge(thingNode, "op"), dataNode.String("opId")),
		ReplyToID:       firstNonEmpty(thingIDFromEdge(thingNode, "replyTo"), dataNode.String("replyToId")),
		ReplyToAuthorID: authorFromEdge(replyToNode),
		ReplyToKind:     replyToNode.String("kind"),
		IsCommand:       changes.IsCommand(dataNode.String("body")),
		Scores:          map[string]float64{},
	}

	if countsNode != nil {
		rec.Counts = Counts{
			Up:       countsNode.Int("up"),
			Down:     countsNode.Int("down"),
			Score:    countsNode.Int("score"),
			Comment:  countsNode.Int("comment"),
			Replies:  countsNode.Int("replies"),
			Commands: changes.ParseCommandMap(countsNode.String("commands")),
		}
	}

	return rec
}

func topicFromEdge(node *graph.Node) string {
	if soul := node.Edge("topic"); soul != "" {
		if name, ok := graph.ParseTopicSoul(soul); ok {
			return name
		}
	}
	return ""
}

func authorFromEdge(node *graph.Node) string {
	if soul := node.Edge("author"); soul != "" {
		if id, ok := graph.ParseAuthorSoul(soul); ok {
			return id
		}
	}
	return ""
}

func thingIDFromEdge(node *graph.Node, field string) string {
	if soul := node.Edge(field); soul != "" {
		if id, ok := graph.ParseThingSoul(soul); ok {
			return id
		}
	}
	return ""
}

func domainOf(dataNode *graph.Node) string {
	if d := dataNode.String("domain"); d != "" {
		return d
	}
	return domainFromURL(dataNode.String("url"))
}
