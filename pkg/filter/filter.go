// Package filter adapts the memory engine to a chat host's request/response
// hooks. Inlet runs before the model sees a conversation: it injects the
// user's rendered memory into the system message and reports progress through
// the host's status channel. Outlet runs after the model replies: once enough
// user turns accumulate it folds the conversation into durable memory.
//
// The filter never fails a turn. Anything that goes wrong is logged and
// reported as a status line; the conversation always proceeds.
package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/engine"
	"github.com/engramhq/engram/pkg/eventstream"
	"github.com/engramhq/engram/pkg/format"
	"github.com/engramhq/engram/pkg/memory"
)

// DefaultThreshold is the number of user turns before an update fires.
const DefaultThreshold = 3

// Config controls injection and update behavior.
type Config struct {
	// Threshold is the minimum user-turn count before Outlet updates memory.
	Threshold uint

	// Format selects the injection rendering mode.
	Format format.Mode

	// MaxIdentity caps identity facts in structured rendering. Zero means
	// the renderer's default.
	MaxIdentity int

	// ShowStatus enables progress status emission.
	ShowStatus bool

	// ShowInjected additionally emits the injected context itself, for
	// hosts that surface it to the user.
	ShowInjected bool
}

func (c Config) withDefaults() Config {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Format == "" {
		c.Format = format.ModeStructured
	}
	return c
}

// Request is one conversation moment handed to the filter by the host.
type Request struct {
	UserID         string
	ConversationID string
	Messages       []memory.Turn
}

// Status is a progress line for the host to surface. Done marks the final
// status of an operation.
type Status struct {
	Description string
	Done        bool
}

// Emitter receives status lines. Hosts pass nil when they have no status
// channel.
type Emitter func(Status)

// Filter wires the engine into a host's inlet/outlet hooks.
type Filter struct {
	engine    *engine.Engine
	config    Config
	logger    *zap.Logger
	publisher eventstream.Publisher
}

// Option configures optional filter collaborators.
type Option func(*Filter)

// WithPublisher mirrors every status line onto the event stream, so consumers
// without a host status channel still see load and update progress. Publish
// failures are logged and never fail the turn.
func WithPublisher(publisher eventstream.Publisher) Option {
	return func(f *Filter) {
		f.publisher = publisher
	}
}

// New builds a filter around an engine the caller owns.
func New(eng *engine.Engine, config Config, logger *zap.Logger, opts ...Option) *Filter {
	f := &Filter{
		engine: eng,
		config: config.withDefaults(),
		logger: logger,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Inlet injects the user's memory into the conversation and returns the
// modified message list. A request without a user id, and any load failure,
// passes the messages through untouched.
func (f *Filter) Inlet(ctx context.Context, req Request, emit Emitter) []memory.Turn {
	if req.UserID == "" {
		return req.Messages
	}

	f.emit(ctx, req.UserID, emit, Status{Description: "Loading your memories..."})

	state, err := f.engine.Load(ctx, req.UserID)
	if err != nil {
		f.logger.Warn("memory unavailable for conversation",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		f.emit(ctx, req.UserID, emit, Status{Description: "Memory unavailable, continuing without it", Done: true})
		return req.Messages
	}

	rendered := f.engine.FormatWithOptions(state, f.config.Format, format.Options{
		MaxIdentity: f.config.MaxIdentity,
	})

	messages := injectContext(req.Messages, rendered)

	if state.FactCount > 0 {
		f.emit(ctx, req.UserID, emit, Status{
			Description: fmt.Sprintf("Recalled %d memories", state.FactCount),
			Done:        true,
		})
	} else {
		f.emit(ctx, req.UserID, emit, Status{Description: "Getting to know you...", Done: true})
	}

	if f.config.ShowInjected && rendered != "" {
		f.emit(ctx, req.UserID, emit, Status{Description: rendered, Done: true})
	}

	return messages
}

// Outlet folds the finished exchange into durable memory once the user has
// said enough to be worth remembering. It never returns an error to the host;
// a degraded update is reported as a status line and logged.
func (f *Filter) Outlet(ctx context.Context, req Request, emit Emitter) {
	if req.UserID == "" {
		return
	}

	if countUserTurns(req.Messages) < int(f.config.Threshold) {
		return
	}

	f.emit(ctx, req.UserID, emit, Status{Description: "Updating memory graph..."})

	state, err := f.engine.Update(ctx, req.UserID, req.Messages)
	if err != nil {
		f.logger.Warn("memory update skipped",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		f.emit(ctx, req.UserID, emit, Status{Description: "Memory update skipped", Done: true})
		return
	}

	f.emit(ctx, req.UserID, emit, Status{
		Description: fmt.Sprintf("Memories updated (%d facts)", state.FactCount),
		Done:        true,
	})
}

// emit delivers a status line to the host emitter and mirrors it onto the
// event stream. ShowStatus gates both channels.
func (f *Filter) emit(ctx context.Context, userID string, emit Emitter, status Status) {
	if !f.config.ShowStatus {
		return
	}

	if emit != nil {
		emit(status)
	}

	if f.publisher != nil {
		event := eventstream.NewStatusEvent(userID, status.Description, status.Done)
		if err := f.publisher.PublishStatus(ctx, event); err != nil {
			f.logger.Warn("status event publish failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}

// injectContext folds rendered memory into the conversation's system message,
// creating one when the conversation has none. The memory block goes before
// the host's own system instructions. The input slice is not modified.
func injectContext(messages []memory.Turn, rendered string) []memory.Turn {
	if rendered == "" {
		return messages
	}

	out := make([]memory.Turn, len(messages))
	copy(out, messages)

	if len(out) > 0 && out[0].Role == memory.RoleSystem {
		out[0].Content = rendered + "\n\n" + out[0].Content
		return out
	}

	return append([]memory.Turn{{Role: memory.RoleSystem, Content: rendered}}, out...)
}

func countUserTurns(messages []memory.Turn) int {
	n := 0
	for _, m := range messages {
		if m.Role == memory.RoleUser {
			n++
		}
	}
	return n
}
