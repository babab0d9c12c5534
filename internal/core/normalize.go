// Package core holds the ledger's domain types and the category normalizer.
//
// Category labels arrive as free text from a language model and from users,
// so the same spending category can show up as "food", "Food" or "FOOD".
// Everything that touches a category goes through NormalizeCategory first.
package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeCategory canonicalizes a free-text category label: surrounding
// whitespace is trimmed and the label is rendered in Title Case. Blank input
// maps to DefaultCategory. The function is total and idempotent, so it is
// safe to re-apply to already-normalized historical data.
func NormalizeCategory(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return DefaultCategory
	}
	return cases.Title(language.English).String(label)
}

// normalizeToken lowercases and trims a keyword-style input such as a
// kakeibo bucket name.
func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
