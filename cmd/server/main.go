package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pos-backend/internal/config"
	"pos-backend/internal/database"
	"pos-backend/internal/enrichment"
	"pos-backend/internal/server"
	"pos-backend/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using the process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)

	// Money goes out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.Open(cfg)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer database.Close(db)

	opts := enrichment.Options{
		BaseURL: cfg.EnrichmentURL,
		Timeout: cfg.EnrichmentTimeout,
	}
	if cfg.ProductImagePath != "" {
		opts.Images = enrichment.NewImageStore(cfg.ProductImagePath, 0)
	}
	if cfg.RedisAddr != "" {
		rdb := enrichment.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Warn("redis unreachable, lookups will not be cached until it is", "addr", cfg.RedisAddr, "error", err)
		}
		opts.Cache = enrichment.NewRedisCache(rdb, cfg.EnrichmentCacheTTL)
	}
	if cfg.EnrichmentURL == "" {
		slog.Info("ENRICHMENT_URL not set, barcode lookups return empty suggestions")
	}

	deps := server.NewDeps(db, enrichment.NewClient(opts))
	deps.CORSOrigins = strings.Join(cfg.Origins(), ",")
	deps.UploadsDir = cfg.ProductImagePath
	app := server.NewApp(deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server listening", "port", cfg.HTTPPort, "driver", cfg.DBDriver)
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
