// Package services orchestrates ledger mutations across storage, event
// publishing and backup scheduling.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"financier/internal/amqp"
	"financier/internal/core"
	applog "financier/internal/log"
	"financier/internal/resolver"
	"financier/internal/storage"
)

// EventPublisher announces ledger mutations to interested consumers.
// *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, kind string, id int64, userID string) error
}

// BackupTrigger requests an asynchronous snapshot after a mutation.
type BackupTrigger interface {
	Trigger(ctx context.Context)
}

// LedgerService orchestrates expense operations across SQLite, AMQP and
// the backup coordinator. Publisher and trigger may be nil; mutations then
// stay local.
type LedgerService struct {
	store    *storage.LedgerStore
	resolver *resolver.Resolver
	events   EventPublisher
	backups  BackupTrigger
}

func NewLedgerService(store *storage.LedgerStore, res *resolver.Resolver, events EventPublisher, backups BackupTrigger) *LedgerService {
	return &LedgerService{
		store:    store,
		resolver: res,
		events:   events,
		backups:  backups,
	}
}

// EnsureUser registers a username if it is not already taken. It reports
// whether a new user was created.
func (s *LedgerService) EnsureUser(ctx context.Context, username, email string) (bool, error) {
	created, err := s.store.CreateUser(ctx, username, email)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	return created, nil
}

// AddExpense saves an expense, announces it and schedules a snapshot.
// The expense is durable once this returns; event and snapshot failures
// are logged, not propagated.
func (s *LedgerService) AddExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	added, err := s.store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publishEvent(ctx, amqp.EventExpenseCreated, added.ID, added.UserID)
	s.triggerBackup(ctx)
	return added, nil
}

// UpdateExpense runs the fuzzy resolution protocol and, when a record was
// actually changed, announces the update and schedules a snapshot.
func (s *LedgerService) UpdateExpense(ctx context.Context, c resolver.Criteria, selection int, patch core.ExpensePatch) (resolver.Resolution, error) {
	res, err := s.resolver.ResolveUpdate(ctx, c, selection, patch)
	if err != nil {
		return resolver.Resolution{}, fmt.Errorf("resolve update: %w", err)
	}

	if res.Outcome == resolver.OutcomeUpdated {
		s.publishEvent(ctx, amqp.EventExpenseUpdated, res.After.ID, res.After.UserID)
		s.triggerBackup(ctx)
	}
	return res, nil
}

func (s *LedgerService) publishEvent(ctx context.Context, kind string, id int64, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseEvent(ctx, kind, id, userID); err != nil {
		// The mutation is already durable, so the request still succeeds.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldComponent, applog.ComponentLedger,
			applog.FieldExpenseID, id,
			"kind", kind,
			applog.FieldError, err)
	}
}

func (s *LedgerService) triggerBackup(ctx context.Context) {
	if s.backups == nil {
		return
	}
	s.backups.Trigger(ctx)
}

// Close releases the underlying store.
func (s *LedgerService) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
