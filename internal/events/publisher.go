package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	TypeLineAdded     = "cart.line_added"
	TypeLineIncreased = "cart.line_increased"
	TypeLineDecreased = "cart.line_decreased"
	TypeLineRemoved   = "cart.line_removed"
	TypeCartMerged    = "cart.merged"
	TypeLineExpired   = "cart.line_expired"
)

// CartEvent is published once the transaction that produced it has committed.
type CartEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	OwnerKind string    `json:"ownerKind"`
	OwnerID   string    `json:"ownerId"`
	VariantID int64     `json:"variantId,omitempty"`
	Delta     int       `json:"delta"`
	Quantity  int       `json:"quantity"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...CartEvent) error
	Close() error
}

type producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher writes cart events to a topic, keyed by owner so one cart's
// events stay ordered within a partition.
type KafkaPublisher struct {
	w producer
}

func NewKafkaPublisher(brokers []string, topic string, tp trace.TracerProvider) (*KafkaPublisher, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	w, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			attribute.String("messaging.destination.name", topic),
		}),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{w: w}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...CartEvent) error {
	var errs error
	for _, e := range events {
		msg, err := Encode(e)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		// one message per write keeps the trace context attached to each record
		if err := p.w.WriteMessage(ctx, msg); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Encode builds the Kafka record for one event.
func Encode(e CartEvent) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.OwnerKind + ":" + e.OwnerID),
		Value: payload,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...CartEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
