package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/blackmichael/graph-listings/internal/graph"
)

// BadgerStore keeps graph nodes in a local badger database, one JSON-encoded
// node per soul key.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Get fetches a node by soul. Returns (nil, nil) when the soul has never
// been written.
func (s *BadgerStore) Get(ctx context.Context, soul string) (*graph.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var node *graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(soul))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n := graph.NewNode(soul)
			if err := json.Unmarshal(val, n); err != nil {
				return fmt.Errorf("decode node: %w", err)
			}
			n.Soul = soul
			node = n
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", soul, err)
	}
	return node, nil
}

// Put merges each patch into the stored node, newer field states winning,
// and writes back the merged result. Each soul is applied in its own
// transaction so one oversized batch cannot wedge the whole write.
func (s *BadgerStore) Put(ctx context.Context, data graph.Data) error {
	for soul, patch := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.putNode(soul, patch); err != nil {
			return fmt.Errorf("put %s: %w", soul, err)
		}
	}
	return nil
}

func (s *BadgerStore) putNode(soul string, patch *graph.Node) error {
	return s.db.Update(func(txn *badger.Txn) error {
		merged := graph.NewNode(soul)

		item, err := txn.Get([]byte(soul))
		if err == nil {
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, merged)
			})
			if err != nil {
				return fmt.Errorf("decode existing node: %w", err)
			}
			merged.Soul = soul
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if graph.Merge(merged, patch) == 0 && len(merged.Values) > 0 {
			// Nothing advanced; skip the write.
			return nil
		}

		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode node: %w", err)
		}
		return txn.Set([]byte(soul), raw)
	})
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
