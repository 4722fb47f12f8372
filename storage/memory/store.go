// Package memory implements storage.SnapshotStore by holding the most
// recent routing table in a guarded slice — useful for tests and for
// servers that don't need a snapshot to survive a process restart.
package memory

import (
	"context"
	"sync"

	"github.com/hyperborea-net/hyperborea/router"
)

// Store is an in-memory storage.SnapshotStore.
type Store struct {
	mu      sync.RWMutex
	entries []router.RoutingEntry
}

// NewStore creates an empty in-memory snapshot store.
func NewStore() *Store {
	return &Store{}
}

// Load returns a copy of the most recently Saved entries.
func (s *Store) Load(ctx context.Context) ([]router.RoutingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]router.RoutingEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Save replaces the held snapshot with a copy of entries.
func (s *Store) Save(ctx context.Context, entries []router.RoutingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]router.RoutingEntry, len(entries))
	copy(s.entries, entries)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
