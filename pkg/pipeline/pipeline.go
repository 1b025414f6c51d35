// Package pipeline implements the fixed three-stage transition applied to a
// memory snapshot on every update:
//
//	commit-merged → refresh-metadata → summarize
//
// The stages are strictly sequential, run exactly once per update, and are
// terminal after the last stage — no branching, no loops, no re-entrancy
// within a run. The orchestrator's merge result enters as an explicit
// parameter of Run rather than through shared state, which keeps every stage
// pure and independently testable.
package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/memory"
)

// Result carries the merge orchestrator's output into the commit stage.
type Result struct {
	// Facts is the complete replacement fact list.
	Facts []memory.Fact

	// Available is false when the collaborator produced nothing usable;
	// the commit stage then leaves the existing facts untouched.
	Available bool
}

// Pipeline runs the three-stage transition over memory snapshots.
type Pipeline struct {
	clock  func() time.Time
	logger *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source. Tests use it for deterministic
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// New creates a pipeline.
func New(logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		clock:  func() time.Time { return time.Now().UTC() },
		logger: logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes the three stages over the snapshot in place and returns it.
// After every run, regardless of the merge outcome: PendingTurns is empty,
// FactCount equals len(Facts), and Summary reflects exactly the current
// facts.
func (p *Pipeline) Run(state *memory.MemoryState, merged Result) *memory.MemoryState {
	now := p.clock()

	p.commitMerged(state, merged, now)
	p.refreshMetadata(state, now)
	p.summarize(state)

	return state
}

// commitMerged validates every entry of a present merge result, drops
// invalid ones, and replaces the fact list wholesale — never appends. When
// the merge is unavailable the facts stay as they are. Pending turns are
// cleared unconditionally either way.
func (p *Pipeline) commitMerged(state *memory.MemoryState, merged Result, now time.Time) {
	defer func() {
		state.PendingTurns = nil
	}()

	if !merged.Available {
		p.logger.Debug("no merged facts, keeping existing",
			zap.String("user_id", state.UserID),
		)
		return
	}

	valid := make([]memory.Fact, 0, len(merged.Facts))
	for _, f := range merged.Facts {
		normalized, ok := memory.Normalize(f, now)
		if !ok {
			p.logger.Warn("dropping invalid fact",
				zap.String("user_id", state.UserID),
				zap.String("kind", f.Kind),
				zap.String("subject", f.Subject),
			)
			continue
		}
		valid = append(valid, normalized)
	}

	state.Facts = valid

	p.logger.Debug("replaced facts with merged result",
		zap.String("user_id", state.UserID),
		zap.Int("facts", len(valid)),
		zap.Int("dropped", len(merged.Facts)-len(valid)),
	)
}

// refreshMetadata recomputes the derived counters.
func (p *Pipeline) refreshMetadata(state *memory.MemoryState, now time.Time) {
	state.FactCount = len(state.Facts)
	state.LastUpdated = now
}

// summarize regenerates the deterministic summary from the current facts.
// It is recomputed on every run, never incrementally patched, so it can
// never drift from the fact list.
func (p *Pipeline) summarize(state *memory.MemoryState) {
	state.Summary = Summarize(state.Facts)
}
