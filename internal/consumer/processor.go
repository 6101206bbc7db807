// Package consumer reads ledger events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/platform/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a record written by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	Key           string
	EventType     string
	EventID       string
	SchemaSubject string
	SchemaVersion int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithHandlerRetry sets how many times a failing handler is tried per message
// and the first delay between tries. Delays grow exponentially from there.
func WithHandlerRetry(attempts int, initial time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if initial > 0 {
			p.retryDelay = initial
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  logrus.FieldLogger

	attempts   int
	retryDelay time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  logrus.StandardLogger().WithField("component", "consumer"),

		attempts:   5,
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches and processes messages until ctx is cancelled. A message whose
// handler still fails after every retry stops the loop with an error and is
// left uncommitted; committing a later offset would skip it for the group.
func (p *Processor) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := p.reader.FetchMessage(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			p.logger.WithError(err).Warn("fetch failed")
			continue
		}
		if err := p.process(ctx, msg); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (p *Processor) process(ctx context.Context, msg kafka.Message) error {
	log := p.logger.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	event, err := decodeMessage(msg)
	if err != nil {
		recordDecodeError(msg.Topic)
		log.WithError(err).Warn("dropping undecodable message")
		// Skip poison pills rather than stall the partition.
		p.commit(ctx, log, msg)
		return nil
	}

	log = log.WithFields(logrus.Fields{"event_type": event.EventType, "event_id": event.EventID})
	if err := p.handle(ctx, log, event); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Error("handler failed, stopping before commit")
		return fmt.Errorf("handle %s at %s/%d@%d: %w", event.EventID, msg.Topic, msg.Partition, msg.Offset, err)
	}
	if p.commit(ctx, log, msg) {
		recordProcessed(event)
	}
	return nil
}

func (p *Processor) handle(ctx context.Context, log logrus.FieldLogger, event Message) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.retryDelay
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := p.handler.Handle(ctx, event)
		if err != nil {
			recordHandlerError(event)
			log.WithError(err).WithField("attempt", attempt).Warn("handler attempt failed")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.attempts-1)), ctx))
}

func (p *Processor) commit(ctx context.Context, log logrus.FieldLogger, msg kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("commit failed")
		return false
	}
	return true
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unexpected magic byte %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	known, ok := events.Versions[string(eventType)]
	if !ok {
		return Message{}, fmt.Errorf("unknown event_type %q", eventType)
	}
	version := int(binary.BigEndian.Uint32(msg.Value[1:5]))
	if version != known {
		return Message{}, fmt.Errorf("event_type %s: unsupported schema version %d", eventType, version)
	}

	payload := msg.Value[5:]
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}
	eventID, ok := headerValue(msg, "event_id")
	if !ok || len(eventID) == 0 {
		return Message{}, errors.New("missing event_id header")
	}
	schemaSubject, _ := headerValue(msg, "schema_subject")

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		Key:           string(msg.Key),
		EventType:     string(eventType),
		EventID:       string(eventID),
		SchemaSubject: string(schemaSubject),
		SchemaVersion: version,
		Payload:       append(json.RawMessage(nil), payload...),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
