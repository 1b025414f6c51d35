// Package nop provides a Publisher that discards every event. Used when no
// event stream backend is configured.
package nop

import (
	"context"

	"github.com/engramhq/engram/pkg/eventstream"
)

// Publisher discards all events.
type Publisher struct{}

var _ eventstream.Publisher = (*Publisher)(nil)

// New creates a no-op publisher.
func New() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishStatus(context.Context, *eventstream.StatusEvent) error {
	return nil
}

func (p *Publisher) PublishMemoryUpdated(context.Context, *eventstream.MemoryUpdatedEvent) error {
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
