// Package postgres provides a PostgreSQL-backed checkpoint store using pgx.
//
// Each user's snapshot lives in a single JSONB row replaced wholesale on
// every Put. The pgx connection pool is the only shared mutable resource
// across concurrent users; its bounds come from Config.MinConns/MaxConns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/memory"
)

// Querier abstracts the pgx query methods needed by the store. Both
// *pgxpool.Pool and pgx.Tx satisfy it, which lets tests inject a mock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// MinConns and MaxConns bound the shared connection pool.
	MinConns int32
	MaxConns int32
}

// ConnString builds a PostgreSQL connection URI. The password is escaped so
// special characters survive the round trip.
func (c Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	return u.String()
}

// Store implements checkpoint.Store on PostgreSQL.
type Store struct {
	db     Querier
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore connects to PostgreSQL, verifies reachability, and returns a
// ready store. An unreachable database here is fatal for the engine instance:
// the error is surfaced as a connection-class failure rather than degraded.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot connect to postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Debug("postgres connection pool created",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int32("min_conns", poolCfg.MinConns),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)

	return &Store{db: pool, pool: pool, logger: logger}, nil
}

// New wraps an existing pgx-compatible querier. Used by tests to inject a
// pgxmock pool; production callers use NewStore.
func New(db Querier, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Get retrieves the latest snapshot for the user.
func (s *Store) Get(ctx context.Context, userID string) (*memory.MemoryState, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT state FROM memory_states WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, checkpoint.ErrNotFound{UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading memory state: %w", err)
	}

	var state memory.MemoryState
	if err := json.Unmarshal(raw, &state); err != nil {
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

	_, err = s.db.Exec(ctx,
		`INSERT INTO memory_states (user_id, state, fact_count, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET state = EXCLUDED.state,
		     fact_count = EXCLUDED.fact_count,
		     updated_at = NOW()`,
		state.UserID, raw, state.FactCount,
	)
	if err != nil {
		return fmt.Errorf("persisting memory state: %w", err)
	}

	return nil
}

// Close releases the connection pool. A no-op for injected queriers.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
