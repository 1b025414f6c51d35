// Package eventstream defines transport-neutral progress events emitted
// while memory is loaded and updated. The host conversation application (or
// any other consumer) subscribes through a Publisher backend; the engine
// never renders status itself.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeStatus is a human-readable progress notification emitted
	// during a load or update cycle.
	EventTypeStatus = "engram.status"

	// EventTypeMemoryUpdated is emitted after an update cycle commits a
	// new snapshot (or degrades).
	EventTypeMemoryUpdated = "engram.memory.updated"
)

// StatusEvent is a progress notification for one user's memory cycle.
type StatusEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	UserID      string `json:"user_id"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// MemoryUpdatedEvent records the outcome of one update cycle.
type MemoryUpdatedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	UserID     string `json:"user_id"`
	FactCount  int    `json:"fact_count"`
	DurationMs int64  `json:"duration_ms"`

	// Degraded is true when the cycle timed out or skipped the merge and
	// the snapshot was left unchanged.
	Degraded bool `json:"degraded"`
}

// NewStatusEvent builds a StatusEvent with envelope fields populated.
func NewStatusEvent(userID, description string, done bool) *StatusEvent {
	return &StatusEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeStatus,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UserID:        userID,
		Description:   description,
		Done:          done,
	}
}

// NewMemoryUpdatedEvent builds a MemoryUpdatedEvent with envelope fields
// populated.
func NewMemoryUpdatedEvent(userID string, factCount int, duration time.Duration, degraded bool) *MemoryUpdatedEvent {
	return &MemoryUpdatedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryUpdated,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UserID:        userID,
		FactCount:     factCount,
		DurationMs:    duration.Milliseconds(),
		Degraded:      degraded,
	}
}
