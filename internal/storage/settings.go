package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// GetSetting returns the stored value for key, or def when the key is absent.
func (s *LedgerStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts key to value, refreshing its updated_at timestamp.
func (s *LedgerStore) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSettingLocked(ctx, key, value)
}

func (s *LedgerStore) setSettingLocked(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// IncrementCounter bumps a Setting interpreted as an integer and returns the
// new value. A missing or unparseable value counts as starting from zero.
func (s *LedgerStore) IncrementCounter(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read counter %q: %w", key, err)
	}

	n, _ := strconv.Atoi(raw)
	n++
	if err := s.setSettingLocked(ctx, key, strconv.Itoa(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// ResetCounter sets a counter Setting back to zero.
func (s *LedgerStore) ResetCounter(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSettingLocked(ctx, key, "0")
}
