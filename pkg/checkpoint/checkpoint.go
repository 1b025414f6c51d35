// Package checkpoint defines the durable persistence layer for memory
// snapshots.
//
// A Store keeps exactly one MemoryState per user, replaced wholesale on every
// commit, plus an append-only schema-migration ledger. Backends are pluggable
// via configuration:
//
//	[store]
//	provider = "postgres"   # or "sqlite", "memory"
package checkpoint

import (
	"context"

	"github.com/engramhq/engram/pkg/memory"
)

// Store persists one memory snapshot per user.
type Store interface {
	// Get returns the latest committed snapshot for the user.
	// Returns ErrNotFound when no snapshot exists; the caller constructs a
	// fresh empty state.
	Get(ctx context.Context, userID string) (*memory.MemoryState, error)

	// Put atomically replaces the stored snapshot for the state's user.
	// Writes are last-writer-wins replacements with no version check;
	// per-user update serialization is the caller's responsibility.
	Put(ctx context.Context, state *memory.MemoryState) error

	// EnsureSchema is idempotent and runs once at startup: it creates the
	// underlying storage structures and the migration ledger if absent,
	// then records any pending migration versions in ascending order.
	EnsureSchema(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
