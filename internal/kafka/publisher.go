package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
	eventVersion       = 1
)

// Sink is where encoded events go; *Producer is the production sink.
type Sink interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header)
}

// EventPublisher wraps lifecycle events in the versioned envelope.
type EventPublisher struct {
	Sink    Sink
	Service string
	Log     *zap.Logger
	Now     func() time.Time
}

var _ commerce.Publisher = (*EventPublisher)(nil)

func (p *EventPublisher) Publish(ctx context.Context, ev commerce.Event) {
	env, err := p.Envelope(ctx, ev)
	if err != nil {
		p.logger().Error("encode event", zap.String("event_type", ev.Type), zap.Error(err))
		return
	}
	b, err := Marshal(env)
	if err != nil {
		p.logger().Error("encode envelope", zap.String("event_type", ev.Type), zap.Error(err))
		return
	}
	p.Sink.Publish(ev.Topic, commerce.PartitionKey(ev.AggregateID), b,
		kafka.Header{Key: HeaderEventType, Value: []byte(ev.Type)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(eventVersion))},
	)
}

func (p *EventPublisher) Envelope(ctx context.Context, ev commerce.Event) (commerce.Envelope, error) {
	payload, err := Marshal(ev.Payload)
	if err != nil {
		return commerce.Envelope{}, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return commerce.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  eventVersion,
		OccurredAt:    now().UTC(),
		Producer:      p.Service,
		TraceID:       commerce.TraceID(ctx),
		CorrelationID: ev.AggregateID,
		Payload:       payload,
	}, nil
}

func (p *EventPublisher) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
