package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	applog "financier/internal/log"
	"financier/internal/storage"
)

// Settings keys recording backup bookkeeping in the ledger itself.
const (
	lastBackupTimeKey  = "last_backup_time"
	lastCleanupTimeKey = "last_cleanup_time"
	backupCountKey     = "backup_count"
)

// DefaultInterval between automatic snapshots.
const DefaultInterval = 15 * time.Minute

// Coordinator schedules ledger snapshots, mirrors them to a snapshot store
// and prunes old ones. A nil snapshot store disables mirroring; snapshots
// then stay local only.
type Coordinator struct {
	store     *storage.LedgerStore
	snapshots SnapshotStore
	interval  time.Duration
	maxCount  int
	maxAge    time.Duration
	now       func() time.Time

	mu       sync.Mutex
	inFlight bool
	pending  bool
}

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	Interval time.Duration
	MaxCount int
	MaxAge   time.Duration
}

func NewCoordinator(store *storage.LedgerStore, snapshots SnapshotStore, opts Options) *Coordinator {
	c := &Coordinator{
		store:     store,
		snapshots: snapshots,
		interval:  opts.Interval,
		maxCount:  opts.MaxCount,
		maxAge:    opts.MaxAge,
		now:       time.Now,
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	return c
}

// Run periodically takes a snapshot when the configured interval has passed
// since the last recorded one. It blocks until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	// Poll well below the interval so a missed tick delays a backup by
	// a fraction of it, not a full period.
	poll := c.interval / 4
	if poll < time.Second {
		poll = time.Second
	}

	slog.InfoContext(ctx, "Backup scheduler started",
		applog.FieldComponent, applog.ComponentBackup, "interval", c.interval.String())

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Backup scheduler stopped",
				applog.FieldComponent, applog.ComponentBackup)
			return ctx.Err()
		case <-ticker.C:
			due, err := c.due(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Backup dueness check failed",
					applog.FieldComponent, applog.ComponentBackup, applog.FieldError, err)
				continue
			}
			if !due {
				continue
			}
			if _, err := c.BackupNow(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled backup failed",
					applog.FieldComponent, applog.ComponentBackup, applog.FieldError, err)
			}
		}
	}
}

func (c *Coordinator) due(ctx context.Context) (bool, error) {
	last, err := c.store.GetSetting(ctx, lastBackupTimeKey, "")
	if err != nil {
		return false, err
	}
	if last == "" {
		return true, nil
	}
	t, err := time.ParseInLocation(storage.TimeLayout, last, c.store.Location())
	if err != nil {
		// Unreadable bookkeeping should not block backups forever.
		return true, nil
	}
	return c.now().Sub(t) >= c.interval, nil
}

// Trigger requests a snapshot without blocking the caller. Requests that
// arrive while one is running coalesce into a single follow-up snapshot.
func (c *Coordinator) Trigger(ctx context.Context) {
	c.mu.Lock()
	if c.inFlight {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	go func() {
		for {
			if _, err := c.BackupNow(ctx); err != nil {
				slog.ErrorContext(ctx, "Triggered backup failed",
					applog.FieldComponent, applog.ComponentBackup, applog.FieldError, err)
			}
			c.mu.Lock()
			if !c.pending {
				c.inFlight = false
				c.mu.Unlock()
				return
			}
			c.pending = false
			c.mu.Unlock()
		}
	}()
}

// BackupNow takes a snapshot immediately, mirrors it, records the
// bookkeeping settings and prunes expired snapshots. It returns the
// snapshot key.
func (c *Coordinator) BackupNow(ctx context.Context) (string, error) {
	stamp := c.now().In(c.store.Location())
	key := SnapshotKey(stamp)
	localPath := filepath.Join(os.TempDir(), key)

	if _, err := c.store.BackupToFile(ctx, localPath); err != nil {
		return "", fmt.Errorf("snapshot ledger: %w", err)
	}

	// With a remote store the local copy is transient; without one it is
	// the backup and stays on disk.
	if c.snapshots != nil {
		defer os.Remove(localPath)
		if err := c.snapshots.Upload(ctx, key, localPath); err != nil {
			return "", fmt.Errorf("mirror snapshot: %w", err)
		}
	}

	if err := c.store.SetSetting(ctx, lastBackupTimeKey, stamp.Format(storage.TimeLayout)); err != nil {
		return "", fmt.Errorf("record backup time: %w", err)
	}
	count, err := c.store.IncrementCounter(ctx, backupCountKey)
	if err != nil {
		return "", fmt.Errorf("bump backup counter: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot taken",
		applog.FieldComponent, applog.ComponentBackup,
		applog.FieldOperation, applog.OpBackup,
		applog.FieldSnapshotKey, key,
		applog.FieldCount, count)

	if err := c.cleanup(ctx); err != nil {
		slog.WarnContext(ctx, "Snapshot cleanup failed",
			applog.FieldComponent, applog.ComponentBackup, applog.FieldError, err)
	}
	return key, nil
}

func (c *Coordinator) cleanup(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	keys, err := c.snapshots.List(ctx)
	if err != nil {
		return err
	}
	expired := Expired(keys, c.now(), c.store.Location(), c.maxCount, c.maxAge)
	for _, key := range expired {
		if err := c.snapshots.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	if len(expired) > 0 {
		slog.InfoContext(ctx, "Expired snapshots removed",
			applog.FieldComponent, applog.ComponentBackup,
			applog.FieldOperation, applog.OpCleanup,
			applog.FieldCount, len(expired))
	}
	return c.store.SetSetting(ctx, lastCleanupTimeKey,
		c.now().In(c.store.Location()).Format(storage.TimeLayout))
}

// RestoreLatest replaces the ledger with the newest mirrored snapshot.
// It reports false when no snapshot exists or the restore did not apply.
func (c *Coordinator) RestoreLatest(ctx context.Context) (bool, error) {
	if c.snapshots == nil {
		return false, nil
	}
	keys, err := c.snapshots.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list snapshots: %w", err)
	}

	var candidates []string
	for _, k := range keys {
		if _, err := SnapshotTime(k, c.store.Location()); err == nil {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return false, nil
	}
	// Key order is chronological, so the lexicographic maximum is the
	// newest snapshot.
	sort.Strings(candidates)
	newest := candidates[len(candidates)-1]

	localPath := filepath.Join(os.TempDir(), "restore_"+newest)
	if err := c.snapshots.Download(ctx, newest, localPath); err != nil {
		return false, fmt.Errorf("fetch snapshot %s: %w", newest, err)
	}
	defer os.Remove(localPath)

	restored := c.store.RestoreFromFile(ctx, localPath)
	if restored {
		slog.InfoContext(ctx, "Ledger restored from snapshot",
			applog.FieldComponent, applog.ComponentBackup,
			applog.FieldOperation, applog.OpRestore,
			applog.FieldSnapshotKey, newest)
	}
	return restored, nil
}
