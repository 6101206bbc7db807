package coach

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	callCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "coach",
		Name:      "calls_total",
		Help:      "Collaborator calls grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	callLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitledger",
		Subsystem: "coach",
		Name:      "call_duration_seconds",
		Help:      "Round trip time of collaborator calls.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"operation"})

	repairCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "coach",
		Name:      "repaired_responses_total",
		Help:      "Responses that needed JSON repair before decoding.",
	}, []string{"operation"})

	foodCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitledger",
		Subsystem: "coach",
		Name:      "food_cache_lookups_total",
		Help:      "Food estimate cache lookups by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(callCounter, callLatency, repairCounter, foodCacheCounter)
}

func recordCall(op, outcome string) {
	callCounter.WithLabelValues(op, outcome).Inc()
}

func observeLatency(op string, start time.Time) {
	callLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func recordRepair(op string) {
	repairCounter.WithLabelValues(op).Inc()
}

func recordFoodCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	foodCacheCounter.WithLabelValues(result).Inc()
}
