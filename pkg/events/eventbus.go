package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/metrics"
)

type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	AggregateID   string                 `json:"aggregateId"`
	AggregateType string                 `json:"aggregateType"`
	Timestamp     time.Time              `json:"timestamp"`
	Actor         string                 `json:"actor,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	RequestID     string                 `json:"requestId,omitempty"`
}

// Bus publishes domain events. Delivery is best effort: callers log a
// failed publish and carry on.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type KafkaBus struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaBus(cfg KafkaConfig, log logger.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: no topic configured")
	}

	bus := &KafkaBus{logger: log}
	bus.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             bus.completed,
	}
	return bus, nil
}

func (k *KafkaBus) Publish(ctx context.Context, event Event) error {
	event = normalize(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateType + ":" + event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "request-id", Value: []byte(event.RequestID)},
		},
	}

	// The writer is async so this only fails on a closed writer
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaBus) completed(messages []kafka.Message, err error) {
	for _, msg := range messages {
		eventType := headerValue(msg, "event-type")
		metrics.RecordEventPublished(eventType, err)
		if err != nil {
			k.logger.Warn("Failed to publish event", "type", eventType, "error", err)
		}
	}
}

func (k *KafkaBus) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// NopBus drops every event. Used when events are disabled.
type NopBus struct{}

func NewNopBus() NopBus { return NopBus{} }

func (NopBus) Publish(context.Context, Event) error { return nil }

func (NopBus) Close() error { return nil }

func normalize(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Payload == nil {
		event.Payload = map[string]interface{}{}
	}
	return event
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type EventBuilder struct {
	event Event
}

func NewEventBuilder(eventType string) *EventBuilder {
	return &EventBuilder{
		event: Event{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Payload:   make(map[string]interface{}),
		},
	}
}

func (b *EventBuilder) WithAggregate(aggregateType string, id uint) *EventBuilder {
	b.event.AggregateType = aggregateType
	b.event.AggregateID = fmt.Sprint(id)
	return b
}

func (b *EventBuilder) WithActor(username string) *EventBuilder {
	b.event.Actor = username
	return b
}

func (b *EventBuilder) WithPayload(key string, value interface{}) *EventBuilder {
	b.event.Payload[key] = value
	return b
}

func (b *EventBuilder) WithRequestID(id string) *EventBuilder {
	b.event.RequestID = id
	return b
}

func (b *EventBuilder) Build() Event {
	return b.event
}

const (
	UserRegistered    = "user.registered"
	UserDeleted       = "user.deleted"
	PostCreated       = "post.created"
	CommentCreated    = "comment.created"
	ResourceSubmitted = "resource.submitted"
)
