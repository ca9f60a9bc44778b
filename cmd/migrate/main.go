package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ghuser/retailstock/migrations/inventory"
	"github.com/ghuser/retailstock/pkg/config"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/pkg/migrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := migrator.RunMigrations(ctx, cfg.DatabaseURL, migrations.FS); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	log.Info("migrations applied")
}
