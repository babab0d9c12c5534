package query

import (
	"context"
	"testing"
	"time"

	"financier/internal/core"
)

func TestMonthsBack(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		n    int
		want []string
	}{
		{
			name: "within one year",
			now:  time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC),
			n:    3,
			want: []string{"2025-04", "2025-05", "2025-06"},
		},
		{
			name: "wraps a year boundary",
			now:  time.Date(2025, 2, 14, 8, 0, 0, 0, time.UTC),
			n:    4,
			want: []string{"2024-11", "2024-12", "2025-01", "2025-02"},
		},
		{
			name: "january wraps immediately",
			now:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			n:    2,
			want: []string{"2024-12", "2025-01"},
		},
		{
			name: "full year from december",
			now:  time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			n:    12,
			want: []string{
				"2024-01", "2024-02", "2024-03", "2024-04", "2024-05", "2024-06",
				"2024-07", "2024-08", "2024-09", "2024-10", "2024-11", "2024-12",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := monthsBack(tc.now, tc.n)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d months, got %d", len(tc.want), len(got))
			}
			for i, first := range got {
				if key := first.Format("2006-01"); key != tc.want[i] {
					t.Fatalf("month %d = %s, want %s", i, key, tc.want[i])
				}
				if first.Day() != 1 {
					t.Fatalf("month %d does not start on the first: %v", i, first)
				}
			}
		})
	}
}

func TestSpendingTrendsZeroFilled(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	engine.now = func() time.Time {
		return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	}

	// Spend in the current month and two months back; the month between
	// stays empty and must still appear.
	mustAdd(t, store, core.NewExpense{
		Date: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), Amount: amount("250"),
	})
	mustAdd(t, store, core.NewExpense{
		Date: time.Date(2024, 11, 20, 18, 0, 0, 0, time.UTC), Amount: amount("100"),
	})
	mustAdd(t, store, core.NewExpense{
		Date: time.Date(2024, 11, 21, 9, 0, 0, 0, time.UTC), Amount: amount("40"),
	})

	trends, err := engine.SpendingTrends(ctx, 3, "")
	if err != nil {
		t.Fatalf("spending trends: %v", err)
	}
	if len(trends) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(trends))
	}

	wantMonths := []string{"2024-11", "2024-12", "2025-01"}
	for i, trend := range trends {
		if trend.Month != wantMonths[i] {
			t.Fatalf("entry %d month = %s, want %s", i, trend.Month, wantMonths[i])
		}
	}
	if !trends[0].Total.Equal(amount("140")) || trends[0].Transactions != 2 {
		t.Fatalf("2024-11 entry wrong: %+v", trends[0])
	}
	if !trends[1].Total.IsZero() || trends[1].Transactions != 0 {
		t.Fatalf("empty month must be zero-filled, got %+v", trends[1])
	}
	if !trends[2].Total.Equal(amount("250")) || trends[2].Transactions != 1 {
		t.Fatalf("2025-01 entry wrong: %+v", trends[2])
	}
}

func TestSpendingTrendsScopedToUser(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	engine.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}

	mustAdd(t, store, core.NewExpense{
		Date: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), Amount: amount("60"), UserID: "alice",
	})
	mustAdd(t, store, core.NewExpense{
		Date: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), Amount: amount("500"), UserID: "bob",
	})

	trends, err := engine.SpendingTrends(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("spending trends: %v", err)
	}
	if len(trends) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(trends))
	}
	if !trends[0].Total.Equal(amount("60")) || trends[0].Transactions != 1 {
		t.Fatalf("trend not scoped to user: %+v", trends[0])
	}
}
