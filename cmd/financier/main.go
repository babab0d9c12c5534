package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"financier/internal/amqp"
	"financier/internal/backup"
	"financier/internal/config"
	applog "financier/internal/log"
	"financier/internal/resolver"
	"financier/internal/services"
	"financier/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting financier", applog.FieldOperation, applog.OpStartup)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to resolve timezone", applog.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.SQLiteDBPath, loc)
	if err != nil {
		logger.Error("Failed to open ledger store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	// Remote snapshot mirroring is optional. Without a bucket, snapshots
	// stay in the local temp directory and restore-on-start is a no-op.
	var snapshots backup.SnapshotStore
	if cfg.BackupBucket != "" {
		gcs, err := backup.NewGCSStore(ctx, cfg.BackupBucket)
		if err != nil {
			logger.Error("Failed to initialize snapshot store", applog.FieldError, err, "bucket", cfg.BackupBucket)
			os.Exit(1)
		}
		snapshots = gcs
	} else {
		logger.Info("Snapshot mirroring disabled - no BACKUP_BUCKET provided")
	}

	coordinator := backup.NewCoordinator(store, snapshots, backup.Options{
		Interval: cfg.BackupInterval,
		MaxCount: cfg.BackupMaxCount,
		MaxAge:   cfg.BackupMaxAge(),
	})

	if cfg.RestoreOnStart {
		restored, err := coordinator.RestoreLatest(ctx)
		if err != nil {
			logger.Error("Restore on start failed", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Restore on start finished", applog.FieldSuccess, restored)
	}

	// Repair legacy category labels before serving queries.
	fixed, err := store.NormalizeCategories(ctx)
	if err != nil {
		logger.Error("Category normalization failed", applog.FieldError, err)
		os.Exit(1)
	}
	if fixed > 0 {
		logger.Info("Normalized legacy categories", applog.FieldCount, fixed)
	}

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
	} else {
		logger.Info("Event publishing disabled - no AMQP_URL provided")
	}

	ledger := services.NewLedgerService(store, resolver.New(store), events, coordinator)
	defer ledger.Close()

	logger.Info("Ledger ready", "path", store.Path(), "timezone", cfg.Timezone)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coordinator.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Runtime error", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
