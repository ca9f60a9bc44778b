package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.temporal.io/sdk/worker"

	"github.com/ghuser/retailstock/pkg/app"
	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/config"
	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/pkg/events"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	"github.com/ghuser/retailstock/pkg/workflows"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
	invworkflows "github.com/ghuser/retailstock/services/inventory/application/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(context.Background()) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	metrics, err := telemetry.NewInventoryMetrics(otel.Meter(cfg.ServiceName + "-worker"))
	if err != nil {
		log.Error("failed to register inventory metrics", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpen,
		MaxIdleConns:    cfg.DatabaseMaxIdle,
		ConnMaxLifetime: cfg.DatabaseConnMaxAge,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer pool.Close()
	log.Info("database pool connected")

	eventBus, err := events.NewEventBus(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	redisClient, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	appConfig := &app.Application{
		Config:   cfg,
		Db:       pool,
		Logger:   log,
		EventBus: eventBus,
		Redis:    redisClient,
		Metrics:  metrics,
	}

	svcs, err := appsvcs.New(appConfig)
	if err != nil {
		log.Error("failed to build inventory services", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	if err := registerSubscribers(ctx, appConfig); err != nil {
		log.Error("failed to register subscribers", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	digest := invworkflows.NewLowStockDigest(
		svcs.Stock,
		cache.NewLowStockSnapshot(redisClient),
		cache.NewLocker(redisClient),
		cfg.LowStockDigestInterval,
		log,
	)
	go digest.Run(ctx)

	if cfg.TemporalEnabled {
		temporalClient, err := workflows.NewTemporalClient(ctx, cfg.TemporalHostPort, cfg.TemporalNamespace, cfg.TemporalTaskQueue, log)
		if err != nil {
			log.Error("failed to initialize temporal client", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		defer temporalClient.Close()
		appConfig.TemporalClient = temporalClient

		w := worker.New(temporalClient.Client, cfg.TemporalTaskQueue, worker.Options{})
		invworkflows.Register(w, invworkflows.NewActivities(svcs.Stock, log))
		if err := w.Start(); err != nil {
			log.Error("failed to start temporal worker", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		defer w.Stop()

		if err := temporalClient.EnsureCron(ctx, invworkflows.LedgerAuditWorkflowID, cfg.TemporalTaskQueue,
			cfg.LedgerAuditCron, invworkflows.LedgerAuditWorkflow); err != nil {
			log.Error("failed to schedule ledger audit", "error", err)
			os.Exit(1) //nolint:gocritic
		}
	} else {
		log.Info("temporal disabled, ledger audit not scheduled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	// EventBus.Close() (via defer) waits up to 30s for in-flight handlers.
	log.Info("worker stopped")
}
