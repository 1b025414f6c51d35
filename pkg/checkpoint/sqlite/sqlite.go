// Package sqlite provides a SQLite-backed checkpoint store for local
// development and single-node deployments.
//
// Snapshot rows carry the serialized state as TEXT; the migration ledger has
// the same shape as the PostgreSQL backend so the two stay interchangeable
// behind checkpoint.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/memory/schema"
)

const createStatesSQL = `CREATE TABLE IF NOT EXISTS memory_states (
    user_id    TEXT PRIMARY KEY,
    state      TEXT NOT NULL,
    fact_count INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
)`

const createMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    changes     TEXT
)`

// Store implements checkpoint.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore opens (or creates) the database at dbPath. Use ":memory:" for an
// ephemeral in-memory database in tests.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// SQLite tolerates a single writer; one open connection sidesteps
	// SQLITE_BUSY under the engine's worker pool.
	db.SetMaxOpenConns(1)

	return &Store{db: db, logger: logger}, nil
}

// EnsureSchema creates the snapshot table and migration ledger if absent and
// records pending migration versions, ascending. Marker inserts only.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStatesSQL); err != nil {
		return fmt.Errorf("creating memory_states table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createMigrationsSQL); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range schema.Pending(current) {
		changes, err := json.Marshal(m.Changes)
		if err != nil {
			return fmt.Errorf("encoding migration v%d changes: %w", m.Version, err)
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at, description, changes) VALUES (?, ?, ?, ?)`,
			m.Version, time.Now().UTC().Format(time.RFC3339), m.Description, string(changes),
		)
		if err != nil {
			return fmt.Errorf("recording migration v%d: %w", m.Version, err)
		}

		s.logger.Info("applied migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
		)
	}

	return nil
}

// Get retrieves the latest snapshot for the user.
func (s *Store) Get(ctx context.Context, userID string) (*memory.MemoryState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM memory_states WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkpoint.ErrNotFound{UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading memory state: %w", err)
	}

	var state memory.MemoryState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decoding memory state: %w", err)
	}

	return &state, nil
}

// Put atomically replaces the stored snapshot for the state's user.
func (s *Store) Put(ctx context.Context, state *memory.MemoryState) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("cannot persist state without a user id")
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding memory state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory_states (user_id, state, fact_count, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET state = excluded.state,
		     fact_count = excluded.fact_count,
		     updated_at = excluded.updated_at`,
		state.UserID, string(raw), state.FactCount, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persisting memory state: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
