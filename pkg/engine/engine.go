// Package engine is the façade over storage, merging, and rendering. Hosts
// talk to the engine only: Load returns the freshest durable snapshot for a
// user, Update folds a batch of conversation turns into durable memory, and
// Format renders a snapshot for prompt injection. Every path degrades to an
// empty snapshot rather than failing the caller's conversation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/eventstream"
	"github.com/engramhq/engram/pkg/eventstream/nop"
	"github.com/engramhq/engram/pkg/format"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/merge"
	"github.com/engramhq/engram/pkg/pipeline"
)

const (
	// DefaultLoadTimeout bounds how long a conversation waits for a read
	// before proceeding without memory.
	DefaultLoadTimeout = 10 * time.Second

	// DefaultUpdateTimeout bounds a full update cycle, collaborator call
	// included.
	DefaultUpdateTimeout = 30 * time.Second
)

// Config tunes the engine's concurrency and patience.
type Config struct {
	LoadTimeout   time.Duration
	UpdateTimeout time.Duration
	Workers       uint
	QueueSize     uint
}

func (c Config) withDefaults() Config {
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if c.UpdateTimeout <= 0 {
		c.UpdateTimeout = DefaultUpdateTimeout
	}
	return c
}

// Engine coordinates the checkpoint store, the merge orchestrator, and the
// update pipeline behind a shared worker pool. One Engine serves all users.
type Engine struct {
	store        checkpoint.Store
	orchestrator *merge.Orchestrator
	pipeline     *pipeline.Pipeline
	publisher    eventstream.Publisher
	pool         *pool
	config       Config
	logger       *zap.Logger

	initOnce sync.Once
	initErr  error
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithPublisher attaches an event publisher. The default discards events.
func WithPublisher(p eventstream.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithPipeline overrides the update pipeline, mainly to pin the clock in
// tests.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(e *Engine) {
		e.pipeline = p
	}
}

// New builds an engine. The store and orchestrator are owned by the caller;
// Close stops the worker pool but leaves both open.
func New(store checkpoint.Store, orchestrator *merge.Orchestrator, config Config, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		orchestrator: orchestrator,
		pipeline:     pipeline.New(logger),
		publisher:    nop.New(),
		config:       config.withDefaults(),
		logger:       logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.pool = newPool(e.config.Workers, e.config.QueueSize, logger)

	return e
}

// init runs schema setup exactly once. A failure here is a connectivity or
// permission problem, so it is surfaced to the caller instead of degraded
// away, and the engine stays unusable.
func (e *Engine) init(ctx context.Context) error {
	e.initOnce.Do(func() {
		schemaCtx, cancel := context.WithTimeout(ctx, e.config.UpdateTimeout)
		defer cancel()

		if err := e.store.EnsureSchema(schemaCtx); err != nil {
			e.initErr = fmt.Errorf("preparing checkpoint schema: %w", err)
		}
	})

	return e.initErr
}

// Load returns the user's durable memory snapshot. A missing user, a storage
// failure, or a slow read all yield a fresh empty snapshot so the caller's
// conversation proceeds without memory rather than without an answer.
func (e *Engine) Load(ctx context.Context, userID string) (*memory.MemoryState, error) {
	if err := e.init(ctx); err != nil {
		return nil, err
	}

	type outcome struct {
		state *memory.MemoryState
		err   error
	}
	done := make(chan outcome, 1)

	ok := e.pool.submit(func() {
		// Detached context: an abandoned wait must not cancel the read
		// mid-flight for the next caller.
		opCtx, cancel := context.WithTimeout(context.Background(), e.config.LoadTimeout)
		defer cancel()

		state, err := e.store.Get(opCtx, userID)
		done <- outcome{state: state, err: err}
	})
	if !ok {
		return memory.NewState(userID), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.config.LoadTimeout)
	defer cancel()

	select {
	case out := <-done:
		var notFound checkpoint.ErrNotFound
		if errors.As(out.err, &notFound) {
			return memory.NewState(userID), nil
		}
		if out.err != nil {
			e.logger.Warn("memory load degraded to empty snapshot",
				zap.String("user_id", userID),
				zap.Error(out.err))
			return memory.NewState(userID), nil
		}
		return out.state, nil
	case <-waitCtx.Done():
		e.logger.Warn("memory load timed out",
			zap.String("user_id", userID),
			zap.Duration("timeout", e.config.LoadTimeout))
		return memory.NewState(userID), nil
	}
}

// Update folds turns into the user's durable memory: load, merge through the
// collaborator, run the update pipeline, persist. The returned snapshot is
// the post-update state. A collaborator or storage failure leaves the stored
// facts untouched and reports degraded=true through the event stream; the
// caller still gets a usable snapshot and a nil error.
func (e *Engine) Update(ctx context.Context, userID string, turns []memory.Turn) (*memory.MemoryState, error) {
	if err := e.init(ctx); err != nil {
		return nil, err
	}

	started := time.Now()

	type outcome struct {
		state    *memory.MemoryState
		degraded bool
	}
	done := make(chan outcome, 1)

	ok := e.pool.submit(func() {
		opCtx, cancel := context.WithTimeout(context.Background(), e.config.UpdateTimeout)
		defer cancel()

		state, degraded := e.updateCycle(opCtx, userID, turns)
		done <- outcome{state: state, degraded: degraded}
	})
	if !ok {
		e.publishUpdated(userID, 0, started, true)
		return memory.NewState(userID), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.config.UpdateTimeout)
	defer cancel()

	select {
	case out := <-done:
		e.publishUpdated(userID, out.state.FactCount, started, out.degraded)
		return out.state, nil
	case <-waitCtx.Done():
		e.logger.Warn("memory update timed out",
			zap.String("user_id", userID),
			zap.Duration("timeout", e.config.UpdateTimeout))
		e.publishUpdated(userID, 0, started, true)
		return memory.NewState(userID), nil
	}
}

// updateCycle is the worker-side body of Update.
func (e *Engine) updateCycle(ctx context.Context, userID string, turns []memory.Turn) (*memory.MemoryState, bool) {
	state, err := e.store.Get(ctx, userID)
	if err != nil {
		var notFound checkpoint.ErrNotFound
		if !errors.As(err, &notFound) {
			e.logger.Warn("memory update starting from empty snapshot",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		state = memory.NewState(userID)
	}
	state.PendingTurns = turns

	merged, err := e.orchestrator.Merge(ctx, state.Facts, turns)
	if err != nil {
		// Transport failure: skip this cycle entirely so a flaky
		// collaborator cannot erode stored facts.
		e.logger.Warn("merge collaborator unreachable, skipping update",
			zap.String("user_id", userID),
			zap.Error(err))
		state.PendingTurns = nil
		return state, true
	}

	state = e.pipeline.Run(state, pipeline.Result{Facts: merged.Facts, Available: merged.Available})

	if err := e.store.Put(ctx, state); err != nil {
		e.logger.Error("persisting memory state failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return state, true
	}

	e.logger.Info("memory updated",
		zap.String("user_id", userID),
		zap.Int("fact_count", state.FactCount),
		zap.Bool("merge_available", merged.Available))

	return state, false
}

// Format renders a snapshot for prompt injection. Safe on any snapshot Load
// or Update returns, including empty ones.
func (e *Engine) Format(state *memory.MemoryState, mode format.Mode) string {
	return format.Render(state, mode, format.Options{})
}

// FormatWithOptions is Format with render options exposed, for hosts that
// cap injected identity facts.
func (e *Engine) FormatWithOptions(state *memory.MemoryState, mode format.Mode, opts format.Options) string {
	return format.Render(state, mode, opts)
}

// Close drains the worker pool. The store and publisher stay open; their
// lifecycles belong to whoever constructed them.
func (e *Engine) Close() {
	e.pool.close()
}

func (e *Engine) publishUpdated(userID string, factCount int, started time.Time, degraded bool) {
	event := eventstream.NewMemoryUpdatedEvent(userID, factCount, time.Since(started), degraded)
	if err := e.publisher.PublishMemoryUpdated(context.Background(), event); err != nil {
		e.logger.Warn("publishing memory update event failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
