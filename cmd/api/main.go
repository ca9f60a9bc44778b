package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	_ "github.com/ghuser/retailstock/docs/swagger"
	"github.com/ghuser/retailstock/pkg/app"
	"github.com/ghuser/retailstock/pkg/auth"
	"github.com/ghuser/retailstock/pkg/barcode"
	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/config"
	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/pkg/events"
	"github.com/ghuser/retailstock/pkg/httpx"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	inventoryApi "github.com/ghuser/retailstock/services/inventory/application/api"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
)

//	@title						RetailStock API
//	@version					1.0
//	@description				Inventory, checkout and membership API for a small retail store.
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//	@host						localhost:8080
//	@BasePath					/api
//	@schemes					http https
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						retailstock_session
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

	// Telemetry: OTel tracing + metrics
	ctx := context.Background()
	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	metrics, err := telemetry.NewInventoryMetrics(otel.Meter(cfg.ServiceName))
	if err != nil {
		log.Error("failed to register inventory metrics", "error", err)
		os.Exit(1) //nolint:gocritic // intentional: startup failure
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

	eventBus, err := events.NewEventBusWithForwarder(cfg, log)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	if err := eventBus.StartForwarder(ctx); err != nil {
		log.Error("failed to start event forwarder", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	sessionStore := auth.NewSessionStore(
		redisClient.Client(),
		[]byte(cfg.SessionAuthKey),
		[]byte(cfg.SessionEncryptionKey),
		cfg.SessionSecure || cfg.Environment == config.EnvProduction,
		auth.DefaultSessionTTL,
	)
	log.Info("session store initialized", "backend", "redis")

	appConfig := &app.Application{
		Config:       cfg,
		Db:           pool,
		Logger:       log,
		EventBus:     eventBus,
		Redis:        redisClient,
		SessionStore: sessionStore,
		Barcode: barcode.NewClient(barcode.Config{
			BaseURL: cfg.BarcodeAPIURL,
			AppCode: cfg.BarcodeAPIAppCode,
			Timeout: cfg.BarcodeAPITimeout,
		}, log),
		Metrics: metrics,
	}

	svcs, err := appsvcs.New(appConfig)
	if err != nil {
		log.Error("failed to build inventory services", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	if cfg.AdminPassword != "" {
		created, err := svcs.Auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			log.Error("failed to bootstrap admin", "error", err)
			os.Exit(1) //nolint:gocritic
		}
		if created {
			log.Info("bootstrap admin created", "username", cfg.AdminUsername)
		}
	}

	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.ServiceName,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		},
		logger.Middleware(log),
		logger.Recovery(log),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.ServiceName),
	)

	r.Get("/health", httpx.HealthHandler(httpx.HealthChecks{
		"database":  pool,
		"redis":     redisClient,
		"event_bus": eventBus,
	}))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	if cfg.SwaggerEnabled {
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}
	r.Route("/api", func(r chi.Router) {
		registerRoutes(r, appConfig, svcs)
	})

	srv := httpx.NewServer(cfg.HTTPAddr, r)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// registerRoutes mounts all service routes under /api.
func registerRoutes(r chi.Router, a *app.Application, svcs *appsvcs.Services) {
	inventoryApi.InventoryRoutes(r, a, svcs)
}
