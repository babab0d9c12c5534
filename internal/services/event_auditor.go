package services

import (
	"context"
	"fmt"

	"financier/internal/amqp"
	applog "financier/internal/log"
	"financier/internal/storage"
)

// EventAuditor renders expense mutation events into the structured audit
// log. Events carry only the id, so the auditor reloads the record and logs
// the fields as stored, not as published.
type EventAuditor struct {
	store  *storage.LedgerStore
	logger *applog.Logger
}

func NewEventAuditor(store *storage.LedgerStore, logger *applog.Logger) *EventAuditor {
	return &EventAuditor{store: store, logger: logger}
}

// Handle logs one mutation event. A returned error requeues the delivery;
// events for records that no longer exist are dropped instead.
func (a *EventAuditor) Handle(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	e, err := a.store.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("load expense %d: %w", msg.ID, err)
	}
	if e == nil {
		a.logger.WarnContext(ctx, "Expense event refers to a missing record",
			applog.FieldExpenseID, msg.ID, "kind", msg.Kind)
		return nil
	}

	fields := applog.NewFields().
		WithOperation(msg.Kind).
		WithExpense(e.ID, e.UserID, e.Category)
	fields[applog.FieldKakeibo] = string(e.Kakeibo)
	fields[applog.FieldAmount] = e.Amount.String()

	a.logger.InfoContext(ctx, "Expense mutated", fields.ToSlice()...)
	return nil
}
