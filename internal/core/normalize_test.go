package core

import "testing"

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"groceries", "Groceries"},
		{"GROCERIES", "Groceries"},
		{"  dining  ", "Dining"},
		{"home utilities", "Home Utilities"},
		{"non-veg", "Non-Veg"},
		{"Groceries", "Groceries"},
		{"", "Miscellaneous"},
		{"   ", "Miscellaneous"},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.out {
			t.Fatalf("NormalizeCategory(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	inputs := []string{"groceries", "  fresh FRUITS ", "non-veg", "", "Miscellaneous"}
	for _, in := range inputs {
		once := NormalizeCategory(in)
		twice := NormalizeCategory(once)
		if once != twice {
			t.Fatalf("normalization of %q not idempotent: %q != %q", in, once, twice)
		}
	}
}

func TestParseKakeibo(t *testing.T) {
	cases := []struct {
		in  string
		out KakeiboCategory
	}{
		{"survival", Survival},
		{"optional", Optional},
		{"culture", Culture},
		{"extra", Extra},
		{"  Culture ", Culture},
		{"OPTIONAL", Optional},
		{"", Survival},
		{"wants", Survival},
	}
	for _, tc := range cases {
		if got := ParseKakeibo(tc.in); got != tc.out {
			t.Fatalf("ParseKakeibo(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
