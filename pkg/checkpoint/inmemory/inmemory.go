// Package inmemory provides a map-backed checkpoint store for tests and for
// running the engine with persistence disabled. Nothing survives a restart.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/memory/schema"
)

// Store implements checkpoint.Store using in-process data structures.
type Store struct {
	mu sync.RWMutex

	// states maps user ID -> latest committed snapshot.
	states map[string]*memory.MemoryState

	// versions is the recorded migration ledger, ascending.
	versions []int
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore creates an empty in-memory checkpoint store.
func NewStore() *Store {
	return &Store{states: make(map[string]*memory.MemoryState)}
}

// EnsureSchema records all known migration versions. Idempotent.
func (s *Store) EnsureSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0
	if len(s.versions) > 0 {
		current = s.versions[len(s.versions)-1]
	}

	for _, m := range schema.Pending(current) {
		s.versions = append(s.versions, m.Version)
	}

	return nil
}

// Get returns a deep copy of the user's snapshot so callers can never mutate
// the stored state in place.
func (s *Store) Get(_ context.Context, userID string) (*memory.MemoryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return nil, checkpoint.ErrNotFound{UserID: userID}
	}

	return state.Clone(), nil
}

// Put replaces the stored snapshot for the state's user. Last-writer-wins.
func (s *Store) Put(_ context.Context, state *memory.MemoryState) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("cannot persist state without a user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.UserID] = state.Clone()

	return nil
}

// Versions returns the recorded migration ledger. Test helper.
func (s *Store) Versions() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int, len(s.versions))
	copy(out, s.versions)

	return out
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
