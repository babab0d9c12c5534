package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Survival KakeiboCategory = "survival"
	Optional KakeiboCategory = "optional"
	Culture  KakeiboCategory = "culture"
	Extra    KakeiboCategory = "extra"
)

// DefaultCategory is the label applied when a category is blank or missing.
const DefaultCategory = "Miscellaneous"

// UnknownUser is the sentinel user id for expenses recorded without one.
const UnknownUser = "unknown"

type (
	// KakeiboCategory is one of the four fixed budgeting buckets.
	KakeiboCategory string

	User struct {
		Username  string
		Email     string
		CreatedAt time.Time
	}

	// Expense is a stored ledger record. Date is the user-stated transaction
	// time, CreatedAt the insertion time; both live in the ledger's fixed
	// timezone.
	Expense struct {
		ID          int64
		Date        time.Time
		Amount      decimal.Decimal
		Category    string
		Kakeibo     KakeiboCategory
		Description string
		UserID      string
		CreatedAt   time.Time
	}

	// NewExpense carries caller-supplied fields for an insert. Category and
	// Kakeibo are raw input; the store normalizes them before persisting.
	// A zero Date means "now".
	NewExpense struct {
		Date        time.Time
		Amount      decimal.Decimal
		Category    string
		Description string
		Kakeibo     string
		UserID      string
	}

	// ExpensePatch is a partial update; nil fields are left untouched.
	ExpensePatch struct {
		Amount      *decimal.Decimal
		Category    *string
		Kakeibo     *KakeiboCategory
		Description *string
		Date        *time.Time
	}

	Setting struct {
		Key       string
		Value     string
		UpdatedAt time.Time
	}
)

var (
	ErrNegativeAmount = errors.New("negative amount")
)

// KakeiboCategories returns the four buckets in their canonical order.
func KakeiboCategories() []KakeiboCategory {
	return []KakeiboCategory{Survival, Optional, Culture, Extra}
}

// ParseKakeibo maps raw input to a bucket; unrecognized or empty input
// defaults to Survival.
func ParseKakeibo(s string) KakeiboCategory {
	switch KakeiboCategory(normalizeToken(s)) {
	case Survival:
		return Survival
	case Optional:
		return Optional
	case Culture:
		return Culture
	case Extra:
		return Extra
	default:
		return Survival
	}
}

func (n NewExpense) Validate() error {
	if n.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// IsEmpty reports whether the patch requests no change at all.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Kakeibo == nil &&
		p.Description == nil && p.Date == nil
}

func (p ExpensePatch) Validate() error {
	if p.Amount != nil && p.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
