package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/platform/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger logrus.FieldLogger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithBatching sets the largest batch written at once and how long a partial
// batch may wait before it is flushed.
func WithBatching(size int, flushInterval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
		if flushInterval > 0 {
			d.flushInterval = flushInterval
		}
	}
}

// WithShutdownTimeout bounds how long Start spends delivering queued events
// after its context is cancelled.
func WithShutdownTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.shutdownTimeout = timeout
	}
}

// Dispatcher drains an Outbox into Kafka.
type Dispatcher struct {
	outbox           *Outbox
	producer         messageWriter
	logger           logrus.FieldLogger
	batchSize        int
	flushInterval    time.Duration
	shutdownTimeout  time.Duration
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(o *Outbox, producer messageWriter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		outbox:           o,
		producer:         producer,
		logger:           logrus.StandardLogger(),
		batchSize:        100,
		flushInterval:    500 * time.Millisecond,
		shutdownTimeout:  5 * time.Second,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the delivery loop until ctx is cancelled, then makes one last
// attempt to deliver whatever is still queued. It should be called in a
// goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	batch := make([]Event, 0, d.batchSize)
	for {
		select {
		case <-ctx.Done():
			d.drain(batch)
			return
		case evt := <-d.outbox.queue:
			batch = append(batch, evt)
			if len(batch) >= d.batchSize {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) drain(batch []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
	defer cancel()

	for more := true; more; {
		select {
		case evt := <-d.outbox.queue:
			batch = append(batch, evt)
		default:
			more = false
		}
	}
	if len(batch) > 0 {
		d.flush(ctx, batch)
	}
}

// flush writes batch to Kafka. Failed events are logged and counted; the
// ledger has already committed them, so they are not requeued.
func (d *Dispatcher) flush(ctx context.Context, batch []Event) {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
		queueDepth.Set(float64(d.outbox.Len()))
	}()

	if err := d.deliver(ctx, batch); err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.WithError(err).WithField("events", len(batch)).Error("outbox delivery failed")
		}
		failedCounter.Add(float64(len(batch)))
		return
	}
	deliveredCounter.Add(float64(len(batch)))
}

func (d *Dispatcher) deliver(ctx context.Context, batch []Event) error {
	byTopic := make(map[string][]kafka.Message)
	order := make([]string, 0, 1)

	for _, evt := range batch {
		version, ok := events.Versions[evt.Type]
		if !ok {
			return fmt.Errorf("no schema version for event_type=%s", evt.Type)
		}
		record := kafka.Message{
			Key:   []byte(evt.PartitionKey),
			Value: encodeWireFormat(version, evt.Payload),
			Time:  evt.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(evt.Type)},
				{Key: "event_id", Value: []byte(evt.ID)},
				{Key: "schema_subject", Value: []byte(evt.Topic + "-value")},
			},
		}
		if _, seen := byTopic[evt.Topic]; !seen {
			order = append(order, evt.Topic)
		}
		byTopic[evt.Topic] = append(byTopic[evt.Topic], record)
	}

	for _, topic := range order {
		if err := d.producer.WriteMessages(ctx, topic, byTopic[topic]...); err != nil {
			return fmt.Errorf("write %s: %w", topic, err)
		}
	}
	return nil
}

// encodeWireFormat frames payload as magic byte 0, a 4-byte big-endian schema
// version, then the JSON body.
func encodeWireFormat(version int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(version))
	copy(frame[5:], payload)
	return frame
}
