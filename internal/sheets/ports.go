package sheets

import (
	"context"

	"wallet/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror keeps an external copy of the expense list. Replace
	// overwrites the whole copy; partial updates are never sent.
	ExpenseMirror interface {
		Replace(ctx context.Context, expenses []core.Expense, balance core.Money) error
	}

	// ExpenseLister reads the mirrored list back.
	ExpenseLister interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}
)
