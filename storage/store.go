// Package storage persists a Router's routing table across restarts,
// implementing the optional routing_snapshot_path configuration field.
// A server with no configured SnapshotStore simply rebuilds its table
// from gossip and client traffic, exactly as it would after data loss.
package storage

import (
	"context"

	"github.com/hyperborea-net/hyperborea/router"
)

// SnapshotStore loads and saves a Router's routing table. Implementations
// must treat Save as a full replace, not a merge: the caller already
// holds the authoritative in-memory state.
type SnapshotStore interface {
	Load(ctx context.Context) ([]router.RoutingEntry, error)
	Save(ctx context.Context, entries []router.RoutingEntry) error
	Close() error
}
