package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orialabs/voicedeck/internal/assistants"
	"github.com/orialabs/voicedeck/internal/cache"
	"github.com/orialabs/voicedeck/internal/calls"
	"github.com/orialabs/voicedeck/internal/config"
	"github.com/orialabs/voicedeck/internal/database"
	"github.com/orialabs/voicedeck/internal/enforcement"
	"github.com/orialabs/voicedeck/internal/logging"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/provider"
	"github.com/orialabs/voicedeck/internal/server"
	"github.com/orialabs/voicedeck/internal/usage"
	"github.com/orialabs/voicedeck/internal/webhook"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Msg("Starting VoiceDeck API server")

	if cfg.Provider.WebhookSecret == "" {
		log.Warn().Msg("PROVIDER_WEBHOOK_SECRET is not set; webhook signature verification is disabled")
	}

	// Initialize database connection
	db, err := database.New(context.Background(), cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Redis is optional: it upgrades the rate limiter and processor lock
	// from process-local to shared.
	var redis *cache.Redis
	if cfg.Redis.Enabled {
		redis, err = cache.New(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redis.Close()
	}

	// Initialize Prometheus metrics
	monitoring.Init()
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := buildPipeline(ctx, cfg, db, redis)

	// Background rollover + queue draining for cron-less deployments
	var scheduler *enforcement.Scheduler
	if cfg.Rollover.Enabled {
		scheduler = enforcement.NewScheduler(
			deps.Rollover, deps.Processor, cfg.Rollover.CheckInterval,
			logging.NewLogger("scheduler"),
		)
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start enforcement scheduler")
		}
	}

	srv := server.NewAPIServer(cfg, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// buildPipeline assembles the webhook-driven enforcement pipeline
func buildPipeline(ctx context.Context, cfg *config.Config, db *database.DB, redis *cache.Redis) server.Deps {
	callStore := calls.NewPostgresStore(db.Pool)
	assistantStore := assistants.NewPostgresStore(db.Pool)
	userStore := usage.NewPostgresUserStore(db.Pool)
	queueStore := enforcement.NewPostgresQueueStore(db.Pool)

	var counterStore webhook.CounterStore
	var lock enforcement.Lock
	if redis != nil {
		counterStore = webhook.NewRedisCounterStore(redis)
		lock = enforcement.NewRedisLock(redis, "enforcement:processor:lock", 5*time.Minute)
	} else {
		memory := webhook.NewMemoryCounterStore()
		memory.StartCleanup(ctx, time.Minute, time.Duration(cfg.RateLimit.WindowSeconds)*2*time.Second)
		counterStore = memory
		lock = enforcement.NewMemoryLock()
	}

	aggregator := usage.NewAggregator(callStore, userStore)
	reconciler := calls.NewReconciler(callStore, assistantStore)
	decider := enforcement.NewDecider(
		aggregator, userStore, queueStore,
		cfg.Usage.MonthlyMinuteLimit,
		logging.NewLogger("enforcement"),
	)

	client := provider.NewClient(&cfg.Provider)
	processor := enforcement.NewProcessor(
		queueStore, assistantStore, client, lock,
		enforcement.ProcessorConfig{
			BatchSize:            cfg.Usage.QueueBatchSize,
			GraceDurationSeconds: cfg.Usage.GraceDurationSeconds,
			Retry: provider.RetryPolicy{
				MaxAttempts: cfg.Usage.RetryAttempts,
				Backoff:     cfg.Usage.RetryBackoff,
			},
		},
		logging.NewLogger("processor"),
	)
	rollover := enforcement.NewRollover(userStore, queueStore, logging.NewLogger("rollover"))

	return server.Deps{
		DB:         db,
		Verifier:   webhook.NewVerifier(cfg.Provider.WebhookSecret),
		Limiter:    webhook.NewRateLimiter(counterStore, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowSeconds),
		Reconciler: reconciler,
		CallStore:  callStore,
		Aggregator: aggregator,
		Decider:    decider,
		Processor:  processor,
		Rollover:   rollover,
		Queue:      queueStore,
	}
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
