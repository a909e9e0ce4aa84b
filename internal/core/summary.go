package core

import "errors"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// TotalsByCategory sums expenses per category, in first-seen order.
func TotalsByCategory(expenses []Expense) []CategoryAmount {
	index := map[string]int{}
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Price)
	}
	return out
}

// Stable error kinds exposed to callers that cannot match sentinels.
const (
	KindInsufficientBalance = "insufficient_balance"
	KindInvalidIncomeAmount = "invalid_income_amount"
	KindInvalidAmount       = "invalid_amount"
	KindEmptyTitle          = "empty_title"
	KindTitleTooLong        = "title_too_long"
	KindEmptyCategory       = "empty_category"
	KindUnknownCategory     = "unknown_category"
	KindInvalidDate         = "invalid_date"
	KindInvalidExpense      = "invalid_expense"
	KindInternal            = "internal_error"
)

// ErrorKind maps an error to its stable kind string. Unknown errors are internal.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrInvalidIncomeAmount):
		return KindInvalidIncomeAmount
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrEmptyTitle):
		return KindEmptyTitle
	case errors.Is(err, ErrTitleTooLong):
		return KindTitleTooLong
	case errors.Is(err, ErrEmptyCategory):
		return KindEmptyCategory
	case errors.Is(err, ErrUnknownCategory):
		return KindUnknownCategory
	case errors.Is(err, ErrInvalidDate):
		return KindInvalidDate
	case errors.Is(err, ErrInvalidExpense):
		return KindInvalidExpense
	default:
		return KindInternal
	}
}

// IsUserError reports whether err is a validation or business-rule failure
// the user can fix by changing the input.
func IsUserError(err error) bool {
	k := ErrorKind(err)
	return k != "" && k != KindInternal
}
