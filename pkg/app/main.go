package app

import (
	"github.com/gorilla/sessions"

	"github.com/ghuser/retailstock/pkg/barcode"
	"github.com/ghuser/retailstock/pkg/cache"
	"github.com/ghuser/retailstock/pkg/config"
	"github.com/ghuser/retailstock/pkg/database"
	"github.com/ghuser/retailstock/pkg/events"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/telemetry"
	"github.com/ghuser/retailstock/pkg/workflows"
)

// Application holds shared infrastructure dependencies for all services.
// Pass to all service BookRoutes calls during server initialization.
//
// Logging: app.Logger is backed by a trace-aware handler; use slog's context
// methods and trace_id, span_id, request_id and operator_id are injected
// automatically:
//
//	app.Logger.InfoContext(ctx, "movement recorded", "product_id", id)
//	app.Logger.ErrorContext(ctx, "approve check failed", "error", err)
//
// Use app.Logger.Info/Error (no context) only for startup and shutdown messages.
type Application struct {
	Config         *config.Config
	Db             *database.Database
	Logger         logger.Logger
	EventBus       *events.EventBus
	Redis          *cache.RedisClient        // nil in tests; caches are skipped
	TemporalClient *workflows.TemporalClient // nil when Temporal is disabled
	SessionStore   sessions.Store            // Redis-backed session store; nil in worker process
	Barcode        *barcode.Client
	Metrics        *telemetry.InventoryMetrics
}
