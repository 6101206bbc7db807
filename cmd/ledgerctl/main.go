package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"example.com/fitledger/internal/coach"
	"example.com/fitledger/internal/config"
	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/observability"
	"example.com/fitledger/internal/store"
	"example.com/fitledger/internal/store/backend"
	"example.com/fitledger/internal/tracker"
)

var Version = "dev"

func main() {
	root := newRootCmd(openFromConfig)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// opener builds the tracker a command runs against. The returned func
// releases the underlying store.
type opener func(ctx context.Context, flags globalFlags) (*tracker.Tracker, func(), error)

type globalFlags struct {
	store      string
	sqlitePath string
	timezone   string
	logLevel   string
	json       bool
}

func openFromConfig(ctx context.Context, flags globalFlags) (*tracker.Tracker, func(), error) {
	cfg := config.Load()

	logger, err := observability.NewLogger(firstNonEmpty(flags.logLevel, cfg.LogLevel), false)
	if err != nil {
		return nil, nil, err
	}
	log := logger.WithField("component", "ledgerctl")
	store.SetLogger(log)

	policy, err := daykey.LoadPolicy(firstNonEmpty(flags.timezone, cfg.Timezone))
	if err != nil {
		return nil, nil, err
	}

	st, err := backend.Open(ctx, backend.Config{
		Kind:        firstNonEmpty(flags.store, cfg.StoreBackend),
		SQLitePath:  firstNonEmpty(flags.sqlitePath, cfg.SQLitePath),
		PostgresURL: cfg.PostgresURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []tracker.Option{tracker.WithLogger(log)}
	if cfg.CoachURL != "" {
		client, err := coach.New(coach.Config{
			BaseURL:       cfg.CoachURL,
			APIKey:        cfg.CoachAPIKey,
			Timeout:       cfg.CoachTimeout,
			RatePerSecond: cfg.CoachRatePerSec,
			Burst:         1,
			FoodCacheSize: cfg.FoodCacheSize,
		}, coach.WithLogger(log))
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		opts = append(opts, tracker.WithCoach(client))
	}

	closeFn := func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}
	return tracker.Open(ctx, st, policy, opts...), closeFn, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseAt accepts RFC 3339 or a bare YYYY-MM-DD, which is taken as noon in loc.
func parseAt(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC 3339 or YYYY-MM-DD, got %q", raw)
	}
	return day.Add(12 * time.Hour), nil
}
