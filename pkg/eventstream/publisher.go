package eventstream

import "context"

// Publisher publishes memory lifecycle events to an event stream backend.
type Publisher interface {
	PublishStatus(ctx context.Context, event *StatusEvent) error
	PublishMemoryUpdated(ctx context.Context, event *MemoryUpdatedEvent) error
	Close() error
}
