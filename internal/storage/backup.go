package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const backupNameLayout = "20060102_150405"

// BackupToFile copies the ledger file to path and returns the path written.
// An empty path picks a timestamped file in the OS temp directory. The copy
// runs under the write lock, so it is a consistent point-in-time snapshot.
func (s *LedgerStore) BackupToFile(ctx context.Context, path string) (string, error) {
	if path == "" {
		name := fmt.Sprintf("expenses_backup_%s.db", s.now().Format(backupNameLayout))
		path = filepath.Join(os.TempDir(), name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := copyFile(s.path, path); err != nil {
		return "", fmt.Errorf("backup ledger to %s: %w", path, err)
	}

	slog.InfoContext(ctx, "Ledger backed up", "path", path)
	return path, nil
}

// RestoreFromFile replaces the live ledger with the contents of path and
// re-applies schema initialization. Failures are reported as false, never
// raised: the caller retries on its next cycle.
//
// Restoring the same file twice is idempotent.
func (s *LedgerStore) RestoreFromFile(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		slog.WarnContext(ctx, "Backup file not found", "path", path)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The open handle must not survive the file swap underneath it.
	if err := s.db.Close(); err != nil {
		slog.WarnContext(ctx, "Closing store before restore", "error", err)
	}

	copyErr := copyFile(path, s.path)

	db, err := sql.Open("sqlite", s.path)
	if err == nil {
		if _, err = db.Exec("PRAGMA busy_timeout = 5000"); err == nil {
			err = db.Ping()
		}
	}
	if err != nil {
		slog.ErrorContext(ctx, "Reopen after restore failed", "path", s.path, "error", err)
		return false
	}
	s.db = db

	if copyErr != nil {
		slog.ErrorContext(ctx, "Ledger restore failed", "path", path, "error", copyErr)
		return false
	}

	if err := ensureSchema(s.path); err != nil {
		slog.ErrorContext(ctx, "Schema check after restore failed", "error", err)
		return false
	}

	slog.InfoContext(ctx, "Ledger restored", "path", path)
	return true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
