package listing

import (
	"sort"
	"strconv"
	"sync"
)

// DefaultCapacity is the bound on entries per listing.
const DefaultCapacity = 1000

// Entry is one ranked slot of a listing. Lower sort values rank first.
type Entry struct {
	ListingSoul string
	Key         string
	ThingID     string
	SortValue   float64
}

// Listing is a capacity-bounded sorted set of things for one listing soul.
// Entries are ordered ascending by sort value; every entry is reachable both
// by thing id and by its storage slot key. All methods serialize on an
// internal mutex, so concurrent upserts against the same listing are safe.
type Listing struct {
	mu       sync.Mutex
	soul     string
	capacity int
	byID     map[string]*Entry
	byKey    map[string]*Entry
	sorted   []*Entry
}

// NewListing creates an empty listing for the given soul.
func NewListing(soul string, capacity int) *Listing {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Listing{
		soul:     soul,
		capacity: capacity,
		byID:     make(map[string]*Entry),
		byKey:    make(map[string]*Entry),
	}
}

// Soul returns the listing's soul.
func (l *Listing) Soul() string { return l.soul }

// Len returns the number of ranked entries.
func (l *Listing) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sorted)
}

// Upsert applies a score update for a thing. Returns the affected entry, or
// nil when nothing changed (same value, or the listing is full and the thing
// does not rank).
func (l *Listing) Upsert(thingID string, sortValue float64) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upsert(thingID, sortValue, "")
}

// Hydrate applies a raw slot row loaded from persistent storage, binding the
// thing to an explicit slot key. A slot already occupied by a different
// entry indicates inconsistent stored data; the row is skipped.
func (l *Listing) Hydrate(key, thingID string, sortValue float64) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upsert(thingID, sortValue, key)
}

func (l *Listing) upsert(thingID string, sortValue float64, key string) *Entry {
	existing := l.byID[thingID]

	if existing != nil && key == "" {
		if existing.SortValue == sortValue {
			return nil
		}

		// The old sort value may no longer be binary-searchable, so the
		// entry is located by identity.
		for i, e := range l.sorted {
			if e == existing {
				l.sorted = append(l.sorted[:i], l.sorted[i+1:]...)
				break
			}
		}

		existing.SortValue = sortValue
		l.insertAt(searchPosition(l.sorted, sortValue), existing)
		return existing
	}

	if key != "" {
		if occupant, ok := l.byKey[key]; ok && occupant.ThingID != thingID {
			return nil
		}
		if existing != nil {
			// Same thing under a second slot key: stored rows disagree.
			return nil
		}

		entry := &Entry{ListingSoul: l.soul, Key: key, ThingID: thingID, SortValue: sortValue}
		l.byID[thingID] = entry
		l.byKey[key] = entry
		l.insertAt(searchPosition(l.sorted, sortValue), entry)
		return entry
	}

	position := searchPosition(l.sorted, sortValue)

	if len(l.sorted) < l.capacity {
		slot := l.nextKey()
		entry := &Entry{ListingSoul: l.soul, Key: slot, ThingID: thingID, SortValue: sortValue}
		l.byID[thingID] = entry
		l.byKey[slot] = entry
		l.insertAt(position, entry)
		return entry
	}

	if position >= l.capacity {
		// Listing full and the thing does not rank.
		return nil
	}

	// Evict the worst-ranked entry and reuse its slot key.
	evicted := l.sorted[len(l.sorted)-1]
	l.sorted = l.sorted[:len(l.sorted)-1]
	if l.byID[evicted.ThingID] == evicted {
		delete(l.byID, evicted.ThingID)
	}

	evicted.ThingID = thingID
	evicted.SortValue = sortValue
	l.byID[thingID] = evicted
	l.insertAt(position, evicted)
	return evicted
}

// ThingIDs returns up to limit thing ids in rank order, skipping offset
// entries. A nil filter admits everything; filtering happens before
// pagination so pages stay dense.
func (l *Listing) ThingIDs(limit, offset int, filter func(thingID string) bool) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, limit)
	skipped := 0
	for _, e := range l.sorted {
		if filter != nil && !filter(e.ThingID) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		ids = append(ids, e.ThingID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids
}

// Snapshot returns a copy of the ranked entries in order.
func (l *Listing) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.sorted))
	for i, e := range l.sorted {
		out[i] = *e
	}
	return out
}

// Get returns the entry for a thing id, or nil.
func (l *Listing) Get(thingID string) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.byID[thingID]; ok {
		copied := *e
		return &copied
	}
	return nil
}

func (l *Listing) insertAt(position int, entry *Entry) {
	l.sorted = append(l.sorted, nil)
	copy(l.sorted[position+1:], l.sorted[position:])
	l.sorted[position] = entry
}

// nextKey assigns the next unused synthetic slot key. Keys are small
// integers starting at size+1, skipping any claimed by hydrated rows.
func (l *Listing) nextKey() string {
	idx := len(l.sorted) + 1
	for {
		key := strconv.Itoa(idx)
		if _, taken := l.byKey[key]; !taken {
			return key
		}
		idx++
	}
}

// searchPosition returns the lowest index whose sort value is >= the insert
// value. Ties therefore resolve to the leftmost position, keeping insertion
// deterministic.
func searchPosition(sorted []*Entry, value float64) int {
	return sort.Search(len(sorted), func(i int) bool {
		return sorted[i].SortValue >= value
	})
}
