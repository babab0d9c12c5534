package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"financier/internal/core"
)

const expenseColumns = "id, date, amount, category, kakeibo_category, description, user_id, created_at"

// AddExpense normalizes, defaults and persists a new expense, returning the
// record exactly as stored (echo semantics), including the assigned id.
func (s *LedgerStore) AddExpense(ctx context.Context, n core.NewExpense) (core.Expense, error) {
	if err := n.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	date := n.Date
	if date.IsZero() {
		date = now
	}

	e := core.Expense{
		Amount:      n.Amount,
		Category:    core.NormalizeCategory(n.Category),
		Kakeibo:     core.ParseKakeibo(n.Kakeibo),
		Description: n.Description,
		UserID:      n.UserID,
	}
	if e.UserID == "" {
		e.UserID = core.UnknownUser
	}

	// Round-trip timestamps through the stored representation so the echoed
	// record equals a later read of the same row.
	dateStr := s.formatTime(date)
	createdStr := s.formatTime(now)
	var err error
	if e.Date, err = s.parseTime(dateStr); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = s.parseTime(createdStr); err != nil {
		return core.Expense{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (date, amount, category, kakeibo_category, description, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dateStr, e.Amount.String(), e.Category, string(e.Kakeibo), e.Description, e.UserID, createdStr,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense added",
		"id", e.ID,
		"amount", e.Amount.String(),
		"category", e.Category,
		"kakeibo", string(e.Kakeibo),
		"user_id", e.UserID)

	return e, nil
}

// UpdateExpense applies the non-nil fields of patch to the expense with the
// given id. It returns false when the id does not exist or the patch is
// empty; unspecified fields are left untouched.
func (s *LedgerStore) UpdateExpense(ctx context.Context, id int64, patch core.ExpensePatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	if patch.IsEmpty() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sets []string
		args []any
	)
	if patch.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, patch.Amount.String())
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, core.NormalizeCategory(*patch.Category))
	}
	if patch.Kakeibo != nil {
		sets = append(sets, "kakeibo_category = ?")
		args = append(args, string(core.ParseKakeibo(string(*patch.Kakeibo))))
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, s.formatTime(*patch.Date))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return false, fmt.Errorf("update expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update expense rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	slog.InfoContext(ctx, "Expense updated", "id", id, "fields", len(sets))
	return true, nil
}

// GetExpense returns nil when no expense has the given id.
func (s *LedgerStore) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := s.scanExpense(rows)
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	return &e, nil
}

// GetExpenses returns the ledger filtered per f, ordered by date descending.
// An empty filter returns everything.
func (s *LedgerStore) GetExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + expenseColumns + " FROM expenses WHERE 1=1"
	var args []any

	if !f.Start.IsZero() {
		query += " AND date >= ?"
		args = append(args, s.formatTime(f.Start))
	}
	if !f.End.IsZero() {
		query += " AND date <= ?"
		args = append(args, s.formatTime(s.endOfDay(f.End)))
	}
	if f.Category != "" {
		// The filter string is raw caller input; matching happens against
		// the normalized form so "food", "Food" and "FOOD" are the same.
		query += " AND category = ?"
		args = append(args, core.NormalizeCategory(f.Category))
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	query += " ORDER BY date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := s.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// NormalizeCategories re-applies category normalization to every stored
// expense and reports how many rows changed. Safe to run repeatedly; used as
// a maintenance pass over data written before normalization existed.
func (s *LedgerStore) NormalizeCategories(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, category FROM expenses")
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}

	type fix struct {
		id       int64
		category string
	}
	var fixes []fix
	for rows.Next() {
		var (
			id       int64
			category string
		)
		if err := rows.Scan(&id, &category); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan category: %w", err)
		}
		if normalized := core.NormalizeCategory(category); normalized != category {
			fixes = append(fixes, fix{id: id, category: normalized})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, f := range fixes {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE expenses SET category = ? WHERE id = ?", f.category, f.id); err != nil {
			return 0, fmt.Errorf("normalize expense %d: %w", f.id, err)
		}
	}

	if len(fixes) > 0 {
		slog.InfoContext(ctx, "Normalized stored categories", "rows", len(fixes))
	}
	return len(fixes), nil
}

func (s *LedgerStore) scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e       core.Expense
		date    string
		kakeibo string
		created string
	)
	if err := row.Scan(&e.ID, &date, &e.Amount, &e.Category, &kakeibo, &e.Description, &e.UserID, &created); err != nil {
		return core.Expense{}, err
	}

	// Re-normalize on the way out so rows persisted before normalization
	// existed still present canonically.
	e.Category = core.NormalizeCategory(e.Category)
	e.Kakeibo = core.ParseKakeibo(kakeibo)

	var err error
	if e.Date, err = s.parseTime(date); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = s.parseTime(created); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
