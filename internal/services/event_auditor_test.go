package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"financier/internal/amqp"
	"financier/internal/core"
	applog "financier/internal/log"
	"financier/internal/storage"
)

func newTestAuditor(t *testing.T) (*EventAuditor, *storage.LedgerStore, *bytes.Buffer) {
	t.Helper()
	store, err := storage.New(t.TempDir()+"/ledger.db", time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var buf bytes.Buffer
	logger := applog.New(applog.Config{
		Component: applog.ComponentWorker,
		Handler:   slog.NewTextHandler(&buf, nil),
	})
	return NewEventAuditor(store, logger), store, &buf
}

func TestEventAuditorLogsStoredRecord(t *testing.T) {
	auditor, store, buf := newTestAuditor(t)
	ctx := context.Background()

	added, err := store.AddExpense(ctx, core.NewExpense{
		Amount:      decimal.NewFromInt(25),
		Category:    "groceries",
		Description: "weekly shop",
		UserID:      "alice",
	})
	require.NoError(t, err)

	err = auditor.Handle(ctx, &amqp.ExpenseEventMessage{
		Kind:   amqp.EventExpenseCreated,
		ID:     added.ID,
		UserID: "alice",
	})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "component=worker")
	require.Contains(t, out, "operation=expense_created")
	require.Contains(t, out, fmt.Sprintf("expense_id=%d", added.ID))
	require.Contains(t, out, "user_id=alice")
	require.Contains(t, out, "category=Groceries", "log carries the stored, normalized fields")
	require.Contains(t, out, "amount=25")
}

func TestEventAuditorDropsMissingRecord(t *testing.T) {
	auditor, _, buf := newTestAuditor(t)

	err := auditor.Handle(context.Background(), &amqp.ExpenseEventMessage{
		Kind: amqp.EventExpenseUpdated,
		ID:   9999,
	})
	require.NoError(t, err, "an event for a vanished record is dropped, not requeued")
	require.Contains(t, buf.String(), "missing record")
}
