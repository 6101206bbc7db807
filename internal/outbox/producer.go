package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerOption tunes the writers a KafkaProducer creates.
type ProducerOption func(*KafkaProducer)

// WithClientID tags connections so broker logs can tell the API apart from
// other producers on the cluster.
func WithClientID(id string) ProducerOption {
	return func(p *KafkaProducer) {
		if id != "" {
			p.clientID = id
		}
	}
}

// WithWriteTimeout bounds a single broker write.
func WithWriteTimeout(timeout time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		if timeout > 0 {
			p.writeTimeout = timeout
		}
	}
}

// KafkaProducer keeps one writer per topic. Ledger events are keyed by day, and
// the hash balancer maps a key to a fixed partition, so one day's events are
// read back in the order they were written.
type KafkaProducer struct {
	brokers      []string
	clientID     string
	writeTimeout time.Duration

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for brokers. No connection is made
// until the first write.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:      brokers,
		clientID:     "fitledger-api",
		writeTimeout: 10 * time.Second,
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages writes msgs to topic and blocks until every broker replica
// has acknowledged them.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if err := p.writer(topic).WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), topic, err)
	}
	return nil
}

func (p *KafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:                   kafka.TCP(p.brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           p.writeTimeout,
			AllowAutoTopicCreation: true,
			Transport:              &kafka.Transport{ClientID: p.clientID},
		}
		p.writers[topic] = w
	}
	return w
}

// Close flushes pending batches and closes every writer, returning the first
// error encountered.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	writers := p.writers
	p.writers = make(map[string]*kafka.Writer)
	p.mu.Unlock()

	var firstErr error
	for _, w := range writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
