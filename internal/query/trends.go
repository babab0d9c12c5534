package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"financier/internal/storage"
)

// SpendingTrends returns per-calendar-month totals for the given number of
// months (default 6), oldest first, ending at the current month. Months with
// no expenses appear with a zero total so the series has no gaps.
func (e *Engine) SpendingTrends(ctx context.Context, months int, userID string) ([]MonthTrend, error) {
	if months <= 0 {
		months = 6
	}

	now := e.now().In(e.store.Location())
	trends := make([]MonthTrend, 0, months)

	for _, first := range monthsBack(now, months) {
		expenses, err := e.store.GetExpenses(ctx, storage.ExpenseFilter{
			Start:  first,
			End:    first.AddDate(0, 1, -1),
			UserID: userID,
		})
		if err != nil {
			return nil, fmt.Errorf("spending trends for %s: %w", first.Format("2006-01"), err)
		}

		total := decimal.Zero
		for _, exp := range expenses {
			total = total.Add(exp.Amount)
		}
		trends = append(trends, MonthTrend{
			Month:        first.Format("2006-01"),
			Total:        total,
			Transactions: len(expenses),
		})
	}
	return trends, nil
}

// monthsBack returns the first day of each of the n calendar months ending
// at now's month, oldest first. Walking via AddDate on the first of the
// month keeps year rollover exact; there is no day-of-month normalization
// to go wrong.
func monthsBack(now time.Time, n int) []time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = first.AddDate(0, -i, 0)
	}
	return out
}
