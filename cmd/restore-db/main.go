// Command restore-db replaces the local ledger with the newest remote
// snapshot and exits. Meant for disaster recovery and for seeding a fresh
// deployment from an existing bucket.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"financier/internal/backup"
	"financier/internal/config"
	applog "financier/internal/log"
	"financier/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.BackupBucket == "" {
		logger.Error("BACKUP_BUCKET is required")
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to resolve timezone", applog.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := storage.New(cfg.SQLiteDBPath, loc)
	if err != nil {
		logger.Error("Failed to open ledger store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	snapshots, err := backup.NewGCSStore(ctx, cfg.BackupBucket)
	if err != nil {
		logger.Error("Failed to initialize snapshot store", applog.FieldError, err, "bucket", cfg.BackupBucket)
		os.Exit(1)
	}

	coordinator := backup.NewCoordinator(store, snapshots, backup.Options{
		Interval: cfg.BackupInterval,
		MaxCount: cfg.BackupMaxCount,
		MaxAge:   cfg.BackupMaxAge(),
	})

	restored, err := coordinator.RestoreLatest(ctx)
	if err != nil {
		logger.Error("Restore failed", applog.FieldError, err)
		os.Exit(1)
	}
	if !restored {
		logger.Warn("No snapshot found to restore", "bucket", cfg.BackupBucket)
		os.Exit(1)
	}

	logger.Info("Ledger restored", "path", cfg.SQLiteDBPath)
}
