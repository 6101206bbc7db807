package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/api"
	"example.com/fitledger/internal/auth"
	"example.com/fitledger/internal/coach"
	"example.com/fitledger/internal/config"
	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/observability"
	"example.com/fitledger/internal/outbox"
	"example.com/fitledger/internal/store"
	"example.com/fitledger/internal/store/backend"
	"example.com/fitledger/internal/tracker"
	httptransport "example.com/fitledger/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, true)
	if err != nil {
		logrus.WithError(err).Fatal("configure logger")
	}
	log := logger.WithField("service", "fitledger-api")
	store.SetLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy, err := daykey.LoadPolicy(cfg.Timezone)
	if err != nil {
		log.WithError(err).Fatal("load timezone")
	}

	st, err := backend.Open(ctx, backend.Config{
		Kind:        cfg.StoreBackend,
		SQLitePath:  cfg.SQLitePath,
		PostgresURL: cfg.PostgresURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

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
			log.WithError(err).Fatal("configure coach client")
		}
		opts = append(opts, tracker.WithCoach(client))
	} else {
		log.Warn("COACH_URL not set; plan, food and recovery analysis are disabled")
	}

	var dispatcher *outbox.Dispatcher
	if cfg.EventsEnabled {
		queue := outbox.New(cfg.LedgerTopic, cfg.OutboxBuffer)
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers,
			outbox.WithClientID(cfg.KafkaClientID), outbox.WithWriteTimeout(10*time.Second))
		defer producer.Close()

		dispatcher = outbox.NewDispatcher(queue, producer, outbox.WithLogger(log))
		go dispatcher.Start(ctx)
		opts = append(opts, tracker.WithPublisher(queue))
	}

	ledger := tracker.Open(ctx, st, policy, opts...)

	handler := api.NewHandler(ledger, log)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS for the local web client.
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, nil)

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.WithRequestLogging(log, cors(authMiddleware.Wrap(mux))),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithFields(logrus.Fields{
			"address":  cfg.HTTPAddress,
			"store":    cfg.StoreBackend,
			"timezone": cfg.Timezone,
			"events":   cfg.EventsEnabled,
		}).Info("fitledger api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-shutdownCh
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}

	// Stop the dispatcher only after in-flight requests have published.
	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
