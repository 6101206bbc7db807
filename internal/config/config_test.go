package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "LEDGER_TIMEZONE", "EVENTS_ENABLED", "KAFKA_BROKERS", "KAFKA_CLIENT_ID", "COACH_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "sqlite", cfg.StoreBackend)
	require.Equal(t, "UTC", cfg.Timezone)
	require.False(t, cfg.EventsEnabled)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "fitledger-api", cfg.KafkaClientID)
	require.Equal(t, 30*time.Second, cfg.CoachTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("LEDGER_TIMEZONE", "Europe/Berlin")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("COACH_TIMEOUT", "5s")
	t.Setenv("COACH_RATE_PER_SEC", "0.5")
	t.Setenv("OUTBOX_BUFFER", "not-a-number")

	cfg := Load()
	require.Equal(t, "redis", cfg.StoreBackend)
	require.Equal(t, "Europe/Berlin", cfg.Timezone)
	require.True(t, cfg.EventsEnabled)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 5*time.Second, cfg.CoachTimeout)
	require.InDelta(t, 0.5, cfg.CoachRatePerSec, 1e-9)
	require.Equal(t, 1024, cfg.OutboxBuffer, "unparsable values fall back")
}
