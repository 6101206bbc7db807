// Package observability holds ledger-wide Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lastMutationGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fitledger",
		Subsystem: "ledger",
		Name:      "last_mutation_timestamp_seconds",
		Help:      "Unix timestamp of the most recent persisted mutation per component.",
	}, []string{"component"})

	currentStreakGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitledger",
		Subsystem: "ledger",
		Name:      "current_streak_days",
		Help:      "Current activity streak as of the last logged action.",
	})

	discardedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "ledger",
		Name:      "discarded_entries_total",
		Help:      "Persisted entries dropped at load time because they failed validation.",
	}, []string{"key"})
)

func init() {
	prometheus.MustRegister(lastMutationGauge, currentStreakGauge, discardedCounter)
}

// RecordMutation updates the per-component mutation watermark.
func RecordMutation(component string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastMutationGauge.WithLabelValues(component).Set(float64(ts.Unix()))
}

// SetCurrentStreak publishes the streak length.
func SetCurrentStreak(days int) {
	currentStreakGauge.Set(float64(days))
}

// RecordDiscarded counts entries dropped while loading key.
func RecordDiscarded(key string, n int) {
	if n <= 0 {
		return
	}
	discardedCounter.WithLabelValues(key).Add(float64(n))
}
