// Package main provides the HTTP bridge server for unichat.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unisale/unichat-go/internal/chat"
	"github.com/unisale/unichat-go/internal/config"
	"github.com/unisale/unichat-go/internal/db"
	"github.com/unisale/unichat-go/internal/metrics"
	"github.com/unisale/unichat-go/internal/server"
)

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all chat data from database on startup (testing only)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.Level())
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("starting unichat-server", "addr", cfg.ListenAddr)

	// Connect to the store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = dbClient.InitSchema(ctx)
	cancel()
	if err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// Wipe chat data if requested (via flag or env var)
	if *wipeDB || os.Getenv("UNICHAT_WIPE_DB") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := dbClient.WipeData(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Warn("wiped all chat data")
	}

	collector := metrics.NewCollector()
	store := chat.NewStore(dbClient, collector, logger)
	feed := chat.NewLiveFeed(dbClient, store, collector, logger)
	srv := server.New(cfg.ListenAddr, store, feed, collector, logger)

	// Run until interrupted, then drain.
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
