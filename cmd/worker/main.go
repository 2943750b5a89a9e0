package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"learnloop/internal/dispatch"
	"learnloop/internal/events"
	"learnloop/internal/handler/http/respond"
	pgRepo "learnloop/internal/infra/adapter/persistence/postgres"
	"learnloop/internal/infra/db"
	"learnloop/internal/infra/provider"
	workerPkg "learnloop/internal/infra/worker"
	"learnloop/internal/resilience/circuitbreaker"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM notifications LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("sweep_schedule", workerConfig.SweepSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("dispatch_max_concurrent", workerConfig.DispatchMaxConcurrent),
		slog.Duration("sweep_timeout", workerConfig.SweepTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	dispatcher := setupDispatcher(logger, database, workerConfig)

	// Start metrics HTTP server
	startMetricsServer(ctx, logger, dispatcher)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	// Run the dispatch engine in the background; it rebuilds its buffer
	// from persisted QUEUED rows and then drains it until shutdown.
	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- dispatcher.Run(ctx)
	}()

	sweeper := dispatch.NewSweeper(pgRepo.NewNotificationRepo(database), logger)
	startCronWorker(logger, sweeper, workerConfig, workerMetrics, healthServer)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutting down worker...")
	case err := <-dispatchDone:
		if err != nil {
			logger.Error("dispatch engine failed", slog.Any("error", err))
		}
	}
	cancel()

	// Give in-flight deliveries a moment to record their outcomes.
	select {
	case <-dispatchDone:
	case <-time.After(10 * time.Second):
		logger.Warn("dispatch engine did not stop in time")
	}
	logger.Info("worker stopped")
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// setupDispatcher builds the dispatch engine: provider registry, delivery
// queue, dispatcher worker pool, and bulk batcher.
func setupDispatcher(logger *slog.Logger, database *sql.DB, workerConfig *workerPkg.WorkerConfig) *dispatch.Dispatcher {
	providersPath := os.Getenv("PROVIDERS_CONFIG")
	if providersPath == "" {
		logger.Error("PROVIDERS_CONFIG must be set for the worker")
		os.Exit(1)
	}
	providerConfig, err := provider.LoadConfig(providersPath)
	if err != nil {
		logger.Error("failed to load provider config", slog.Any("error", err))
		os.Exit(1)
	}
	registry, err := provider.BuildRegistry(providerConfig, logger)
	if err != nil {
		logger.Error("failed to build provider registry", slog.Any("error", err))
		os.Exit(1)
	}

	bus := events.NewBus()
	bus.Subscribe(events.NewAuditObserver(logger))

	dispatchConfig := dispatch.DefaultConfig()
	dispatchConfig.Workers = workerConfig.DispatchMaxConcurrent

	// Repositories run through a DB circuit breaker so a dead database sheds
	// load fast instead of piling up blocked queries.
	dbCB := circuitbreaker.NewDBCircuitBreaker(database)
	dispatcher := dispatch.NewDispatcher(dispatchConfig, dispatch.Deps{
		Queue:       dispatch.NewQueue(),
		Repo:        pgRepo.NewNotificationRepo(dbCB),
		Attempts:    pgRepo.NewDeliveryAttemptRepo(dbCB),
		Preferences: pgRepo.NewPreferenceRepo(dbCB),
		Providers:   registry,
		Bus:         bus,
		Logger:      logger,
	})
	dispatcher.AttachBatcher(dispatch.NewBatcher(dispatcher, dispatchConfig, logger))

	logger.Info("dispatch engine initialized",
		slog.Int("workers", dispatchConfig.Workers),
		slog.Int("batch_size", dispatchConfig.BatchSize),
		slog.Duration("batch_delay", dispatchConfig.BatchDelay),
		slog.Duration("poll_interval", dispatchConfig.PollInterval))
	return dispatcher
}

// startCronWorker starts the cron scheduler and runs the expiry sweep periodically.
func startCronWorker(logger *slog.Logger, sweeper *dispatch.Sweeper, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.SweepSchedule, func() {
		runSweepJob(logger, sweeper, cfg, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("sweep scheduled", slog.String("schedule", cfg.SweepSchedule), slog.String("timezone", cfg.Timezone))
}

// runSweepJob executes a single expiry sweep with timeout and error handling.
func runSweepJob(logger *slog.Logger, sweeper *dispatch.Sweeper, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("expiry sweep started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()

	expired, err := sweeper.Sweep(ctx)
	if err != nil {
		logger.Error("expiry sweep failed", slog.Any("error", respond.SanitizeError(err)))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	// Record metrics
	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordNotificationsExpired(int(expired))
	metrics.RecordLastSuccess()

	logger.Info("expiry sweep completed",
		slog.Int64("expired", expired),
		slog.Duration("duration", time.Since(startTime)),
	)
}
