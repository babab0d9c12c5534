package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"financier/internal/core"
	"financier/internal/resolver"
	"financier/internal/storage"
)

type recordedEvent struct {
	kind   string
	id     int64
	userID string
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (f *fakePublisher) PublishExpenseEvent(_ context.Context, kind string, id int64, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, recordedEvent{kind: kind, id: id, userID: userID})
	return nil
}

type fakeTrigger struct {
	calls int
}

func (f *fakeTrigger) Trigger(context.Context) { f.calls++ }

func newTestService(t *testing.T, events EventPublisher, backups BackupTrigger) (*LedgerService, *storage.LedgerStore) {
	t.Helper()
	store, err := storage.New(t.TempDir()+"/ledger.db", time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewLedgerService(store, resolver.New(store), events, backups), store
}

func TestAddExpensePublishesAndTriggers(t *testing.T) {
	events := &fakePublisher{}
	backups := &fakeTrigger{}
	svc, _ := newTestService(t, events, backups)

	added, err := svc.AddExpense(context.Background(), core.NewExpense{
		Amount:      decimal.NewFromInt(25),
		Category:    "food",
		Description: "lunch",
		UserID:      "alice",
	})
	require.NoError(t, err)
	require.NotZero(t, added.ID)

	require.Len(t, events.events, 1)
	require.Equal(t, "expense_created", events.events[0].kind)
	require.Equal(t, added.ID, events.events[0].id)
	require.Equal(t, "alice", events.events[0].userID)
	require.Equal(t, 1, backups.calls)
}

func TestAddExpenseSurvivesPublishFailure(t *testing.T) {
	events := &fakePublisher{err: errors.New("broker down")}
	svc, store := newTestService(t, events, nil)

	added, err := svc.AddExpense(context.Background(), core.NewExpense{
		Amount:      decimal.NewFromInt(5),
		Description: "coffee",
		UserID:      "alice",
	})
	require.NoError(t, err, "a dead broker must not lose the expense")

	got, err := store.GetExpense(context.Background(), added.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestAddExpenseNilCollaborators(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	_, err := svc.AddExpense(context.Background(), core.NewExpense{
		Amount:      decimal.NewFromInt(5),
		Description: "coffee",
		UserID:      "alice",
	})
	require.NoError(t, err)
}

func TestUpdateExpensePublishesOnlyOnChange(t *testing.T) {
	events := &fakePublisher{}
	backups := &fakeTrigger{}
	svc, _ := newTestService(t, events, backups)
	ctx := context.Background()

	added, err := svc.AddExpense(ctx, core.NewExpense{
		Amount:      decimal.NewFromInt(30),
		Category:    "food",
		Description: "dinner",
		UserID:      "alice",
	})
	require.NoError(t, err)
	require.Equal(t, 1, backups.calls)

	// An ambiguous or missing match mutates nothing and stays silent.
	res, err := svc.UpdateExpense(ctx, resolver.Criteria{Description: "yacht"}, 0,
		core.ExpensePatch{Description: strPtr("renamed")})
	require.NoError(t, err)
	require.Equal(t, resolver.OutcomeNoMatch, res.Outcome)
	require.Len(t, events.events, 1)
	require.Equal(t, 1, backups.calls)

	res, err = svc.UpdateExpense(ctx, resolver.Criteria{Description: "dinner"}, 0,
		core.ExpensePatch{Description: strPtr("team dinner")})
	require.NoError(t, err)
	require.Equal(t, resolver.OutcomeUpdated, res.Outcome)
	require.Len(t, events.events, 2)
	require.Equal(t, "expense_updated", events.events[1].kind)
	require.Equal(t, added.ID, events.events[1].id)
	require.Equal(t, 2, backups.calls)
}

func TestEnsureUser(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	created, err := svc.EnsureUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.EnsureUser(ctx, "alice", "")
	require.NoError(t, err)
	require.False(t, created)
}

func strPtr(s string) *string { return &s }
