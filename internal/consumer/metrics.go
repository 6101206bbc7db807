package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "audit_consumer",
		Name:      "events_handled_total",
		Help:      "Ledger events written to the audit log, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "audit_consumer",
		Name:      "undecodable_messages_total",
		Help:      "Messages committed without handling because they could not be decoded.",
	}, []string{"topic"})

	eventLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitledger",
		Subsystem: "audit_consumer",
		Name:      "event_lag_seconds",
		Help:      "Delay between a ledger event reaching Kafka and its audit row being written.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	lastEventGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitledger",
		Subsystem: "audit_consumer",
		Name:      "last_event_timestamp_seconds",
		Help:      "Kafka timestamp of the most recently audited ledger event.",
	})
)

func init() {
	prometheus.MustRegister(handledCounter, rejectedCounter, eventLag, lastEventGauge)
}

func recordProcessed(msg Message) {
	handledCounter.WithLabelValues(msg.EventType, "ok").Inc()
	if msg.Timestamp.IsZero() {
		return
	}
	eventLag.Observe(time.Since(msg.Timestamp).Seconds())
	lastEventGauge.Set(float64(msg.Timestamp.Unix()))
}

func recordHandlerError(msg Message) {
	handledCounter.WithLabelValues(msg.EventType, "error").Inc()
}

func recordDecodeError(topic string) {
	rejectedCounter.WithLabelValues(topic).Inc()
}
