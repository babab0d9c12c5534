package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"financier/internal/core"
	"financier/internal/storage"
)

// memoryStore is an in-memory SnapshotStore for tests.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) Download(_ context.Context, key, localPath string) error {
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such object: %s", key)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (m *memoryStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func newTestStore(t *testing.T) *storage.LedgerStore {
	t.Helper()
	store, err := storage.New(t.TempDir()+"/ledger.db", time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addExpense(t *testing.T, store *storage.LedgerStore, desc string) {
	t.Helper()
	_, err := store.AddExpense(context.Background(), core.NewExpense{
		Amount:      decimal.NewFromInt(10),
		Category:    "food",
		Description: desc,
		UserID:      "alice",
	})
	require.NoError(t, err)
}

func TestBackupNowMirrorsAndRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := newMemoryStore()
	addExpense(t, store, "lunch")

	c := NewCoordinator(store, remote, Options{})
	c.now = func() time.Time { return time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC) }

	key, err := c.BackupNow(ctx)
	require.NoError(t, err)
	require.Equal(t, "expenses_backup_20250601_143005.db", key)
	require.Equal(t, 1, remote.size())

	// The staging copy is transient once the snapshot is mirrored.
	_, err = os.Stat(filepath.Join(os.TempDir(), key))
	require.True(t, os.IsNotExist(err))

	last, err := store.GetSetting(ctx, "last_backup_time", "")
	require.NoError(t, err)
	require.Equal(t, "2025-06-01 14:30:05", last)

	count, err := store.GetSetting(ctx, "backup_count", "0")
	require.NoError(t, err)
	require.Equal(t, "1", count)
}

func TestBackupNowPrunesExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := newMemoryStore()
	addExpense(t, store, "lunch")

	c := NewCoordinator(store, remote, Options{MaxCount: 2})
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		c.now = func() time.Time { return at }
		_, err := c.BackupNow(ctx)
		require.NoError(t, err)
	}

	require.Equal(t, 2, remote.size())
	keys, err := remote.List(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		taken, err := SnapshotTime(k, time.UTC)
		require.NoError(t, err)
		require.True(t, taken.After(base), "only the newest snapshots survive")
	}

	cleaned, err := store.GetSetting(ctx, "last_cleanup_time", "")
	require.NoError(t, err)
	require.NotEmpty(t, cleaned)
}

func TestRestoreLatestPicksNewest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := newMemoryStore()

	c := NewCoordinator(store, remote, Options{})

	// First snapshot has one expense, second has two.
	addExpense(t, store, "lunch")
	c.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	_, err := c.BackupNow(ctx)
	require.NoError(t, err)

	addExpense(t, store, "dinner")
	c.now = func() time.Time { return time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC) }
	_, err = c.BackupNow(ctx)
	require.NoError(t, err)

	// Diverge, then restore.
	addExpense(t, store, "midnight snack")
	restored, err := c.RestoreLatest(ctx)
	require.NoError(t, err)
	require.True(t, restored)

	expenses, err := store.GetExpenses(ctx, storage.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, expenses, 2, "restore rewinds to the newest snapshot")
}

func TestRestoreLatestEmptyRemote(t *testing.T) {
	store := newTestStore(t)
	c := NewCoordinator(store, newMemoryStore(), Options{})

	restored, err := c.RestoreLatest(context.Background())
	require.NoError(t, err)
	require.False(t, restored)
}

func TestRestoreLatestNilRemote(t *testing.T) {
	store := newTestStore(t)
	c := NewCoordinator(store, nil, Options{})

	restored, err := c.RestoreLatest(context.Background())
	require.NoError(t, err)
	require.False(t, restored)
}

func TestBackupNowNilRemoteKeepsLocalSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addExpense(t, store, "lunch")

	c := NewCoordinator(store, nil, Options{})
	key, err := c.BackupNow(ctx)
	require.NoError(t, err)

	localPath := filepath.Join(os.TempDir(), key)
	t.Cleanup(func() { os.Remove(localPath) })
	_, err = os.Stat(localPath)
	require.NoError(t, err, "without a remote the snapshot file is the backup")

	last, err := store.GetSetting(ctx, "last_backup_time", "")
	require.NoError(t, err)
	require.NotEmpty(t, last)
}

func TestTriggerCoalesces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	remote := newMemoryStore()
	addExpense(t, store, "lunch")

	c := NewCoordinator(store, remote, Options{})

	// While a snapshot is in flight, any number of triggers collapses
	// into a single pending follow-up and nothing new starts.
	c.mu.Lock()
	c.inFlight = true
	c.mu.Unlock()
	for i := 0; i < 5; i++ {
		c.Trigger(ctx)
	}
	require.Equal(t, 0, remote.size())
	c.mu.Lock()
	require.True(t, c.pending)
	c.inFlight = false
	c.pending = false
	c.mu.Unlock()

	// With nothing in flight a trigger runs exactly one snapshot.
	c.Trigger(ctx)
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		idle := !c.inFlight
		c.mu.Unlock()
		if idle {
			break
		}
		select {
		case <-deadline:
			t.Fatal("trigger never settled")
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Equal(t, 1, remote.size())
}
