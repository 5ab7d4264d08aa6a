package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, 16, zaptest.NewLogger(t))
	p.Start()

	for i := 0; i < 10; i++ {
		p.Publish(commerce.TopicOrder, []byte("o-1"), []byte("v"))
	}
	p.Close()
	p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.WaitClosed(ctx))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.msgs, 10)
	assert.True(t, w.closed)
	assert.Equal(t, commerce.TopicOrder, w.msgs[0].Topic)

	// publishing after close is a logged no-op
	p.Publish(commerce.TopicOrder, nil, nil)
}

type captureSink struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafka.Header
}

func (s *captureSink) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	s.topic, s.key, s.value, s.headers = topic, key, value, headers
}

func TestEventPublisherEnvelope(t *testing.T) {
	sink := &captureSink{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := &EventPublisher{Sink: sink, Service: "commerce-api", Log: zaptest.NewLogger(t), Now: func() time.Time { return at }}

	ctx := commerce.WithTraceID(context.Background(), "req-42")
	pub.Publish(ctx, commerce.Event{
		Topic:       commerce.TopicOrder,
		Type:        commerce.EventOrderStatusChanged,
		AggregateID: "order-1",
		Payload:     commerce.OrderPayload{OrderID: "order-1", Status: commerce.OrderConfirmed, PrevStatus: commerce.OrderCreated},
	})

	assert.Equal(t, commerce.TopicOrder, sink.topic)
	assert.Equal(t, []byte("order-1"), sink.key)
	require.Len(t, sink.headers, 2)
	assert.Equal(t, commerce.EventOrderStatusChanged, string(sink.headers[0].Value))

	env, err := UnmarshalEnvelope(sink.value)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "commerce-api", env.Producer)
	assert.Equal(t, "req-42", env.TraceID)
	assert.Equal(t, "order-1", env.CorrelationID)
	assert.True(t, at.Equal(env.OccurredAt))

	payload, err := UnwrapPayload[commerce.OrderPayload](env)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderConfirmed, payload.Status)
	assert.Equal(t, commerce.OrderCreated, payload.PrevStatus)
}

type chanReader struct {
	in        chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.in:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *chanReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestConsumerKeepsPerKeyOrderAndCommits(t *testing.T) {
	r := &chanReader{in: make(chan kafka.Message, 32)}
	c := NewConsumerWithReader(r, 4, zaptest.NewLogger(t))

	var mu sync.Mutex
	seen := map[string][]int64{}
	handler := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen[string(m.Key)] = append(seen[string(m.Key)], m.Offset)
		return nil
	}

	for i := int64(0); i < 20; i++ {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		r.in <- kafka.Message{Key: []byte(key), Offset: i}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, handler) }()

	require.Eventually(t, func() bool { return r.commits() == 20 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	for _, offsets := range seen {
		assert.IsIncreasing(t, offsets)
	}
	assert.True(t, r.closed)
}

func TestConsumerRetriesThenSkips(t *testing.T) {
	r := &chanReader{in: make(chan kafka.Message, 1)}
	c := NewConsumerWithReader(r, 1, zaptest.NewLogger(t))
	c.backoff = time.Millisecond

	var mu sync.Mutex
	calls := 0
	handler := func(context.Context, kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("projection unavailable")
	}
	r.in <- kafka.Message{Key: []byte("k"), Offset: 7}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, handler) }()

	require.Eventually(t, func() bool { return r.commits() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, c.retries+1, calls)
}
