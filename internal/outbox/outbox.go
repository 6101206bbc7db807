// Package outbox queues ledger events in process and delivers them to Kafka.
//
// Publishing never blocks a ledger mutation: events go into a bounded channel
// and a Dispatcher drains it. When the channel is full the event is dropped
// and counted.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Publish when the event was dropped.
var ErrQueueFull = errors.New("outbox queue full")

const defaultBuffer = 1024

// Event is one queued ledger event.
type Event struct {
	ID           string
	Type         string
	Topic        string
	PartitionKey string
	Payload      json.RawMessage
	OccurredAt   time.Time
}

// Outbox is a bounded in-memory event queue. It is safe for concurrent use.
type Outbox struct {
	topic string
	queue chan Event
	now   func() time.Time
}

// New creates an outbox publishing to topic. A non-positive buffer uses the
// default capacity.
func New(topic string, buffer int) *Outbox {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Outbox{
		topic: topic,
		queue: make(chan Event, buffer),
		now:   time.Now,
	}
}

// Publish encodes payload and enqueues it without blocking. key becomes the
// Kafka partition key.
func (o *Outbox) Publish(eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	evt := Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		Topic:        o.topic,
		PartitionKey: key,
		Payload:      body,
		OccurredAt:   o.now().UTC(),
	}

	select {
	case o.queue <- evt:
		enqueuedCounter.WithLabelValues(eventType).Inc()
		queueDepth.Set(float64(len(o.queue)))
		return nil
	default:
		droppedCounter.WithLabelValues(eventType).Inc()
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, eventType)
	}
}

// Len reports how many events are waiting for delivery.
func (o *Outbox) Len() int {
	return len(o.queue)
}
