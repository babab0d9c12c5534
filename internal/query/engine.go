// Package query derives summaries, rankings and trends from the ledger.
// Everything here is computed from GetExpenses; there is no independent
// storage and no mutation.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"financier/internal/core"
	"financier/internal/storage"
)

const (
	StatusOver  = "over"
	StatusUnder = "under"
)

// recommendedShare is the fixed kakeibo split: needs, wants, culture,
// unplanned.
var recommendedShare = map[core.KakeiboCategory]float64{
	core.Survival: 50,
	core.Optional: 30,
	core.Culture:  10,
	core.Extra:    10,
}

type (
	// Bucket aggregates spend under one grouping key.
	Bucket struct {
		Total decimal.Decimal
		Count int
	}

	// BalanceEntry compares one kakeibo bucket against its recommended
	// share of total spending.
	BalanceEntry struct {
		ActualAmount          decimal.Decimal
		ActualPercentage      float64
		RecommendedPercentage float64
		Variance              float64
		Status                string
	}

	// MonthTrend is one calendar month's spend. Month is "YYYY-MM".
	MonthTrend struct {
		Month        string
		Total        decimal.Decimal
		Transactions int
	}

	UserStats struct {
		TotalExpenses     decimal.Decimal
		TotalTransactions int
		AverageExpense    decimal.Decimal
		FirstExpenseDate  time.Time
		LastExpenseDate   time.Time
		TopCategory       string
		MonthlyAverage    decimal.Decimal
	}
)

// Engine answers aggregation questions over a ledger store.
type Engine struct {
	store *storage.LedgerStore
	now   func() time.Time
}

func NewEngine(store *storage.LedgerStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// CategorySummary groups the filtered expenses by normalized category.
func (e *Engine) CategorySummary(ctx context.Context, f storage.ExpenseFilter) (map[string]Bucket, error) {
	expenses, err := e.store.GetExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}

	summary := make(map[string]Bucket)
	for _, exp := range expenses {
		b := summary[exp.Category]
		b.Total = b.Total.Add(exp.Amount)
		b.Count++
		summary[exp.Category] = b
	}
	return summary, nil
}

// KakeiboSummary groups the filtered expenses by kakeibo bucket.
func (e *Engine) KakeiboSummary(ctx context.Context, f storage.ExpenseFilter) (map[core.KakeiboCategory]Bucket, error) {
	expenses, err := e.store.GetExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("kakeibo summary: %w", err)
	}

	summary := make(map[core.KakeiboCategory]Bucket)
	for _, exp := range expenses {
		b := summary[exp.Kakeibo]
		b.Total = b.Total.Add(exp.Amount)
		b.Count++
		summary[exp.Kakeibo] = b
	}
	return summary, nil
}

// KakeiboBalanceAnalysis compares actual spend in each of the four buckets
// against the recommended 50/30/10/10 split. All four buckets are always
// present, zero-spend ones included. Exactly matching the recommendation
// counts as "under".
func (e *Engine) KakeiboBalanceAnalysis(ctx context.Context, f storage.ExpenseFilter) (map[core.KakeiboCategory]BalanceEntry, error) {
	summary, err := e.KakeiboSummary(ctx, f)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, b := range summary {
		total = total.Add(b.Total)
	}
	totalSpending := total.InexactFloat64()

	analysis := make(map[core.KakeiboCategory]BalanceEntry, 4)
	for _, bucket := range core.KakeiboCategories() {
		actual := summary[bucket].Total
		actualPct := 0.0
		if totalSpending > 0 {
			actualPct = actual.InexactFloat64() / totalSpending * 100
		}
		recommendedPct := recommendedShare[bucket]

		status := StatusUnder
		if actualPct > recommendedPct {
			status = StatusOver
		}

		analysis[bucket] = BalanceEntry{
			ActualAmount:          actual,
			ActualPercentage:      actualPct,
			RecommendedPercentage: recommendedPct,
			Variance:              actualPct - recommendedPct,
			Status:                status,
		}
	}
	return analysis, nil
}

// TopExpenses returns the filtered expenses sorted by amount descending,
// truncated to limit (default 10). Ties keep the store's scan order.
func (e *Engine) TopExpenses(ctx context.Context, limit int, f storage.ExpenseFilter) ([]core.Expense, error) {
	if limit <= 0 {
		limit = 10
	}

	expenses, err := e.store.GetExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("top expenses: %w", err)
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Amount.GreaterThan(expenses[j].Amount)
	})
	if len(expenses) > limit {
		expenses = expenses[:limit]
	}
	return expenses, nil
}

// MonthlyExpenses returns the expenses of one calendar month. Zero year or
// month default to the current one.
func (e *Engine) MonthlyExpenses(ctx context.Context, year int, month time.Month, userID string) ([]core.Expense, error) {
	now := e.now().In(e.store.Location())
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, e.store.Location())
	last := first.AddDate(0, 1, -1)

	return e.store.GetExpenses(ctx, storage.ExpenseFilter{
		Start:  first,
		End:    last,
		UserID: userID,
	})
}

// RecentExpenses returns the trailing window of the given number of days
// (default 7).
func (e *Engine) RecentExpenses(ctx context.Context, days int, userID string) ([]core.Expense, error) {
	if days <= 0 {
		days = 7
	}
	now := e.now().In(e.store.Location())
	return e.store.GetExpenses(ctx, storage.ExpenseFilter{
		Start:  now.AddDate(0, 0, -days),
		End:    now,
		UserID: userID,
	})
}

// UserStats summarizes one user's ledger history. Returns nil when the user
// has no expenses, which callers render as "no data" rather than an error.
func (e *Engine) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	expenses, err := e.store.GetExpenses(ctx, storage.ExpenseFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	if len(expenses) == 0 {
		return nil, nil
	}

	var (
		total      = decimal.Zero
		byCategory = make(map[string]decimal.Decimal)
		months     = make(map[string]struct{})
	)
	for _, exp := range expenses {
		total = total.Add(exp.Amount)
		byCategory[exp.Category] = byCategory[exp.Category].Add(exp.Amount)
		months[exp.Date.Format("2006-01")] = struct{}{}
	}

	topCategory := ""
	topTotal := decimal.Zero
	for category, sum := range byCategory {
		if sum.GreaterThan(topTotal) || (sum.Equal(topTotal) && (topCategory == "" || category < topCategory)) {
			topCategory = category
			topTotal = sum
		}
	}

	count := int64(len(expenses))
	monthCount := int64(len(months))
	if monthCount < 1 {
		monthCount = 1
	}

	// GetExpenses orders date descending: newest first, oldest last.
	return &UserStats{
		TotalExpenses:     total,
		TotalTransactions: int(count),
		AverageExpense:    total.Div(decimal.NewFromInt(count)),
		FirstExpenseDate:  expenses[len(expenses)-1].Date,
		LastExpenseDate:   expenses[0].Date,
		TopCategory:       topCategory,
		MonthlyAverage:    total.Div(decimal.NewFromInt(monthCount)),
	}, nil
}
