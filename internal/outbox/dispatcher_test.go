package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"example.com/fitledger/internal/platform/events"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

func (s *stubProducer) messages() []kafka.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []kafka.Message
	for _, w := range s.writes {
		out = append(out, w.messages...)
	}
	return out
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishDropsWhenFull(t *testing.T) {
	o := New(events.Topic, 1)
	before := testutil.ToFloat64(droppedCounter.WithLabelValues(events.TypeMealRemoved))

	require.NoError(t, o.Publish(events.TypeMealRemoved, "2024-05-01", events.MealRemoved{MealID: "a"}))
	err := o.Publish(events.TypeMealRemoved, "2024-05-01", events.MealRemoved{MealID: "b"})
	require.ErrorIs(t, err, ErrQueueFull)

	require.Equal(t, 1, o.Len())
	after := testutil.ToFloat64(droppedCounter.WithLabelValues(events.TypeMealRemoved))
	require.InDelta(t, before+1, after, 0.0001)
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	o := New(events.Topic, 4)
	err := o.Publish(events.TypeMealAdded, "2024-05-01", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	require.Zero(t, o.Len())
}

func TestFlushFramesAndKeysMessages(t *testing.T) {
	o := New(events.Topic, 8)
	require.NoError(t, o.Publish(events.TypeActionLogged, "2024-05-01", events.ActionLogged{Day: "2024-05-01", Kind: "meal"}))

	producer := &stubProducer{}
	d := NewDispatcher(o, producer, WithLogger(quietLogger()))
	beforeDelivered := testutil.ToFloat64(deliveredCounter)

	d.drain(nil)

	msgs := producer.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, events.Topic, producer.writes[0].topic)

	msg := msgs[0]
	require.Equal(t, "2024-05-01", string(msg.Key))
	require.Equal(t, events.TypeActionLogged, header(msg, "event_type"))
	require.NotEmpty(t, header(msg, "event_id"))
	require.Equal(t, "ledger_events-value", header(msg, "schema_subject"))

	require.Equal(t, byte(0), msg.Value[0])
	require.EqualValues(t, 1, binary.BigEndian.Uint32(msg.Value[1:5]))
	require.JSONEq(t, `{"date":"2024-05-01","kind":"meal","occurred_at":"0001-01-01T00:00:00Z"}`, string(msg.Value[5:]))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Zero(t, o.Len())
}

func TestFlushFailureIsCountedNotRequeued(t *testing.T) {
	o := New(events.Topic, 8)
	require.NoError(t, o.Publish(events.TypeGoalsUpdated, "goals", events.GoalsUpdated{Calories: 2000}))
	require.NoError(t, o.Publish(events.TypeGoalsUpdated, "goals", events.GoalsUpdated{Calories: 2100}))

	producer := &stubProducer{err: errors.New("broker unavailable")}
	d := NewDispatcher(o, producer, WithLogger(quietLogger()))
	beforeFailed := testutil.ToFloat64(failedCounter)

	d.drain(nil)

	require.InDelta(t, beforeFailed+2, testutil.ToFloat64(failedCounter), 0.0001)
	require.Zero(t, o.Len())
}

func TestUnknownEventTypeFailsBatch(t *testing.T) {
	producer := &stubProducer{}
	d := NewDispatcher(New(events.Topic, 1), producer, WithLogger(quietLogger()))

	err := d.deliver(context.Background(), []Event{{Type: "ledger.unknown", Topic: events.Topic}})
	require.ErrorContains(t, err, "no schema version for event_type=ledger.unknown")
	require.Empty(t, producer.messages())
}

func TestStartDeliversAndDrainsOnShutdown(t *testing.T) {
	o := New(events.Topic, 16)
	producer := &stubProducer{}
	d := NewDispatcher(o, producer, WithLogger(quietLogger()), WithBatching(2, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	for _, day := range []string{"2024-05-01", "2024-05-02", "2024-05-03"} {
		require.NoError(t, o.Publish(events.TypeActionLogged, day, events.ActionLogged{Day: day, Kind: "sleep"}))
	}

	require.Eventually(t, func() bool { return len(producer.messages()) == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, o.Publish(events.TypeActionLogged, "2024-05-04", events.ActionLogged{Day: "2024-05-04", Kind: "sleep"}))
	cancel()
	d.Wait()

	msgs := producer.messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "2024-05-04", string(msgs[3].Key))
}
