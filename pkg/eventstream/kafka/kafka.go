// Package kafka publishes memory lifecycle events to a Kafka topic.
//
// Events are JSON-encoded and keyed by user ID so a user's events land on
// one partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/engramhq/engram/pkg/eventstream"
)

// DefaultTopic is the topic used when none is configured.
const DefaultTopic = "engram.events"

// Config holds Kafka publisher settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher implements eventstream.Publisher on a Kafka writer.
type Publisher struct {
	writer *kafka.Writer
}

var _ eventstream.Publisher = (*Publisher)(nil)

// New creates a Kafka-backed publisher.
func New(config Config) *Publisher {
	topic := config.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      config.Brokers,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	})

	return &Publisher{writer: writer}
}

// PublishStatus sends a status event keyed by user ID.
func (p *Publisher) PublishStatus(ctx context.Context, event *eventstream.StatusEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.publish(ctx, event.UserID, event)
}

// PublishMemoryUpdated sends an update-outcome event keyed by user ID.
func (p *Publisher) PublishMemoryUpdated(ctx context.Context, event *eventstream.MemoryUpdatedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.publish(ctx, event.UserID, event)
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("writing event to kafka: %w", err)
	}

	return nil
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
