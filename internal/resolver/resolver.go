// Package resolver edits ledger records identified by natural-language
// hints instead of an id.
//
// The protocol has two phases. A first call searches with fuzzy criteria;
// when more than one expense matches, nothing is mutated and the candidate
// list goes back to the caller, who re-invokes with a 1-based selection
// index. No state is held between the phases: the second call re-runs the
// same search, so a dropped connection or restart in between is harmless.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financier/internal/core"
	"financier/internal/storage"
)

// Outcome classifies the result of a resolution attempt. Every value is an
// expected, renderable state; none of them are errors.
type Outcome string

const (
	// OutcomeNoCriteria rejects a search with zero criteria rather than
	// listing the entire ledger.
	OutcomeNoCriteria Outcome = "no_criteria"
	// OutcomeNoMatch means the search matched nothing.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeMultiMatch means several expenses matched and no usable
	// selection index was supplied; Candidates carries the list and
	// nothing was mutated.
	OutcomeMultiMatch Outcome = "multi_match"
	// OutcomeNoChanges rejects an empty patch.
	OutcomeNoChanges Outcome = "no_changes"
	// OutcomeUpdated is the success state; Before and After carry the
	// snapshots for rendering a diff.
	OutcomeUpdated Outcome = "updated"
	// OutcomeUpdateFailed means the target vanished between search and
	// apply, or the store rejected the update.
	OutcomeUpdateFailed Outcome = "update_failed"
)

// DefaultLimit caps the candidate list when the caller does not say.
const DefaultLimit = 5

// Criteria is the fuzzy search input. UserID scopes the search; of the
// remaining fields, only the non-zero ones are applied, combined with AND.
type Criteria struct {
	Description string
	Amount      *decimal.Decimal
	Category    string
	Date        time.Time
	UserID      string
}

func (c Criteria) isEmpty() bool {
	return c.Description == "" && c.Amount == nil && c.Category == "" && c.Date.IsZero()
}

// Resolution is the structured result of a resolver call.
type Resolution struct {
	Outcome    Outcome
	Candidates []core.Expense
	Before     *core.Expense
	After      *core.Expense
}

type Resolver struct {
	store *storage.LedgerStore
	limit int
}

func New(store *storage.LedgerStore) *Resolver {
	return &Resolver{store: store, limit: DefaultLimit}
}

// FindCandidates returns the expenses matching the criteria, most recent
// first, capped at the resolver's limit. Empty criteria match nothing.
func (r *Resolver) FindCandidates(ctx context.Context, c Criteria) ([]core.Expense, error) {
	if c.isEmpty() {
		return nil, nil
	}

	// Category and user narrow the scan in SQL; description, amount and
	// date are fuzzy or sub-day comparisons applied here.
	expenses, err := r.store.GetExpenses(ctx, storage.ExpenseFilter{
		Category: c.Category,
		UserID:   c.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	var candidates []core.Expense
	for _, e := range expenses {
		if !r.matches(e, c) {
			continue
		}
		candidates = append(candidates, e)
		if len(candidates) == r.limit {
			break
		}
	}
	return candidates, nil
}

func (r *Resolver) matches(e core.Expense, c Criteria) bool {
	if c.Description != "" &&
		!strings.Contains(strings.ToLower(e.Description), strings.ToLower(c.Description)) {
		return false
	}
	if c.Amount != nil && !e.Amount.Equal(*c.Amount) {
		return false
	}
	if !c.Date.IsZero() {
		want := c.Date.In(r.store.Location())
		y1, m1, d1 := want.Date()
		y2, m2, d2 := e.Date.Date()
		if y1 != y2 || m1 != m2 || d1 != d2 {
			return false
		}
	}
	return true
}

// ResolveUpdate runs the full protocol: search, disambiguate with the
// 1-based selection index, then apply the patch. An out-of-range or missing
// index is only accepted when exactly one candidate exists, which it then
// implicitly selects.
func (r *Resolver) ResolveUpdate(ctx context.Context, c Criteria, selection int, patch core.ExpensePatch) (Resolution, error) {
	if c.isEmpty() {
		return Resolution{Outcome: OutcomeNoCriteria}, nil
	}

	candidates, err := r.FindCandidates(ctx, c)
	if err != nil {
		return Resolution{}, err
	}

	var target core.Expense
	switch {
	case len(candidates) == 0:
		return Resolution{Outcome: OutcomeNoMatch}, nil
	case len(candidates) == 1:
		target = candidates[0]
	case selection >= 1 && selection <= len(candidates):
		target = candidates[selection-1]
	default:
		// Ambiguous and no usable index: hand the list back, mutate
		// nothing, and wait for a re-invocation with a selection.
		return Resolution{Outcome: OutcomeMultiMatch, Candidates: candidates}, nil
	}

	return r.ApplyUpdate(ctx, target.ID, patch)
}

// ApplyUpdate patches the expense with the given id and returns before and
// after snapshots. A target that disappeared since it was found is reported
// as OutcomeUpdateFailed, not an error.
func (r *Resolver) ApplyUpdate(ctx context.Context, id int64, patch core.ExpensePatch) (Resolution, error) {
	if patch.IsEmpty() {
		return Resolution{Outcome: OutcomeNoChanges}, nil
	}
	if err := patch.Validate(); err != nil {
		return Resolution{}, err
	}

	before, err := r.store.GetExpense(ctx, id)
	if err != nil {
		return Resolution{}, fmt.Errorf("load expense %d: %w", id, err)
	}
	if before == nil {
		return Resolution{Outcome: OutcomeUpdateFailed}, nil
	}

	ok, err := r.store.UpdateExpense(ctx, id, patch)
	if err != nil {
		return Resolution{}, fmt.Errorf("apply update to %d: %w", id, err)
	}
	if !ok {
		slog.WarnContext(ctx, "Expense vanished between search and apply", "id", id)
		return Resolution{Outcome: OutcomeUpdateFailed}, nil
	}

	after, err := r.store.GetExpense(ctx, id)
	if err != nil {
		return Resolution{}, fmt.Errorf("reload expense %d: %w", id, err)
	}
	if after == nil {
		return Resolution{Outcome: OutcomeUpdateFailed}, nil
	}

	return Resolution{Outcome: OutcomeUpdated, Before: before, After: after}, nil
}
