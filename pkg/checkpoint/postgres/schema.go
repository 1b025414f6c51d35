package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/memory/schema"
)

const createStatesSQL = `CREATE TABLE IF NOT EXISTS memory_states (
    user_id    TEXT PRIMARY KEY,
    state      JSONB NOT NULL,
    fact_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    description TEXT NOT NULL DEFAULT '',
    changes    JSONB
)`

// EnsureSchema creates the snapshot table and migration ledger if absent,
// then records any pending migration versions in ascending order. Each ledger
// insert is a marker only — no data transform runs.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createStatesSQL); err != nil {
		return fmt.Errorf("creating memory_states table: %w", err)
	}

	if _, err := s.db.Exec(ctx, createMigrationsSQL); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	pending := schema.Pending(current)
	if len(pending) == 0 {
		s.logger.Debug("schema is current", zap.Int("version", current))
		return nil
	}

	s.logger.Info("schema upgrade needed",
		zap.Int("from", current),
		zap.Int("to", schema.Version),
	)

	for _, m := range pending {
		changes, err := json.Marshal(m.Changes)
		if err != nil {
			return fmt.Errorf("encoding migration v%d changes: %w", m.Version, err)
		}

		_, err = s.db.Exec(ctx,
			`INSERT INTO schema_migrations (version, description, changes) VALUES ($1, $2, $3)`,
			m.Version, m.Description, changes,
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
