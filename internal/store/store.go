// Package store persists graph nodes. The graph itself is an external,
// eventually-consistent system; this store only needs get/put with
// field-level last-write-wins merging.
package store

import (
	"context"

	"github.com/blackmichael/graph-listings/internal/graph"
)

// Getter fetches a single node by soul. A missing node is (nil, nil), not an
// error.
type Getter interface {
	Get(ctx context.Context, soul string) (*graph.Node, error)
}

// Putter merges a batch of node patches into storage. Only fields whose
// state advances past the stored state are applied.
type Putter interface {
	Put(ctx context.Context, data graph.Data) error
}

// Store is the full graph adapter surface.
type Store interface {
	Getter
	Putter
	Close() error
}
