package store

import (
	"context"
	"sync"

	"github.com/blackmichael/graph-listings/internal/graph"
)

// MemStore is an in-memory Store used by tests and the seed tool.
type MemStore struct {
	mu    sync.RWMutex
	nodes graph.Data
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{nodes: make(graph.Data)}
}

// Get returns a copy of the stored node, or (nil, nil) when absent.
func (s *MemStore) Get(_ context.Context, soul string) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.nodes[soul]; ok {
		return node.Clone(), nil
	}
	return nil, nil
}

// Put merges the batch into memory, newer field states winning.
func (s *MemStore) Put(_ context.Context, data graph.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	graph.MergeData(s.nodes, data)
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
