package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	loadCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "store",
		Name:      "loads_total",
		Help:      "State document loads grouped by key and outcome (ok, missing, corrupt, error).",
	}, []string{"key", "outcome"})

	saveCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "store",
		Name:      "saves_total",
		Help:      "State document writes grouped by key and outcome.",
	}, []string{"key", "outcome"})

	saveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitledger",
		Subsystem: "store",
		Name:      "save_duration_seconds",
		Help:      "Time spent encoding and writing a state document.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"key"})
)

func init() {
	prometheus.MustRegister(loadCounter, saveCounter, saveDuration)
}

func recordLoad(key, outcome string) {
	loadCounter.WithLabelValues(key, outcome).Inc()
}

func recordSave(key, outcome string, start time.Time) {
	saveCounter.WithLabelValues(key, outcome).Inc()
	saveDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())
}
