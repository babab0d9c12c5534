// Package storage implements the durable ledger: users, expenses and
// key/value settings in a single SQLite file.
//
// Every write takes an exclusive lock so two concurrent inserts can never
// interleave partial writes, and a backup copy taken under the same lock
// never observes a torn page. Reads share the lock.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// TimeLayout is the persisted timestamp format. All stored values are
// rendered in the store's fixed timezone, so lexicographic order of stored
// strings equals chronological order; date filtering relies on that.
const TimeLayout = "2006-01-02 15:04:05"

// LedgerStore owns the on-disk ledger. Construct it once at process start
// and pass it by reference to every consumer.
type LedgerStore struct {
	db   *sql.DB
	path string
	loc  *time.Location

	// mu serializes writes and quiesces them during backup/restore; reads
	// run concurrently under the shared side.
	mu sync.RWMutex
}

// ExpenseFilter narrows GetExpenses. Zero-valued fields are not applied.
// End is inclusive through the last instant of its calendar day.
type ExpenseFilter struct {
	Start    time.Time
	End      time.Time
	Category string
	UserID   string
}

// New opens (creating if needed) the ledger at dbPath and brings its schema
// up to date. All timestamps are stored and queried in loc; a nil loc falls
// back to the process-local timezone.
func New(dbPath string, loc *time.Location) (*LedgerStore, error) {
	if loc == nil {
		loc = time.Local
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &LedgerStore{db: db, path: dbPath, loc: loc}, nil
}

func (s *LedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the location of the backing database file.
func (s *LedgerStore) Path() string {
	return s.path
}

// Location returns the store's fixed timezone.
func (s *LedgerStore) Location() *time.Location {
	return s.loc
}

func (s *LedgerStore) now() time.Time {
	return time.Now().In(s.loc)
}

func (s *LedgerStore) formatTime(t time.Time) string {
	return t.In(s.loc).Format(TimeLayout)
}

// parseTime reads a stored timestamp back into the fixed timezone. Stored
// values always come from formatTime, so a parse failure means a corrupt row.
func (s *LedgerStore) parseTime(v string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", v, err)
	}
	return t, nil
}

// endOfDay expands a caller-supplied end date to the last stored instant of
// that calendar day, making single-day ranges fully inclusive.
func (s *LedgerStore) endOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, s.loc)
}
