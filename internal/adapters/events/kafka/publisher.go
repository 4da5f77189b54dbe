// Package kafka publishes delivery outcome events to a Kafka topic so other
// services can follow the webhook stream without reading the delivery store.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher implements ports.EventPublisher on a Kafka topic. Messages are
// keyed by delivery id so every attempt for one delivery lands on one partition.
type Publisher struct {
	writer Writer
	topic  string
}

// NewPublisher creates a publisher backed by a kafka-go writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic required")
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,

		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, cfg.Topic), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w Writer, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic}
}

// Publish writes event as JSON.
func (p *Publisher) Publish(ctx context.Context, event *domain.DeliveryEvent) error {
	if event == nil || event.Record == nil {
		return fmt.Errorf("delivery event without record")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal delivery event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Record.DeliveryID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(event.Record.Outcome)},
			{Key: "event_type", Value: []byte(event.Record.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ ports.EventPublisher = (*Publisher)(nil)
