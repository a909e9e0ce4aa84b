package memory

import (
	"context"
	"sync"

	"wallet/internal/core"
	ports "wallet/internal/sheets"
)

var (
	_ ports.ExpenseMirror = (*Mirror)(nil)
	_ ports.ExpenseLister = (*Mirror)(nil)
)

// Mirror is an in-process ExpenseMirror for local runs and tests.
type Mirror struct {
	mu       sync.Mutex
	items    []core.Expense
	balance  core.Money
	replaces int
	// FailWith, when set, is returned by Replace without changing anything.
	FailWith error
}

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Replace(_ context.Context, expenses []core.Expense, balance core.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.items = append(m.items[:0:0], expenses...)
	m.balance = balance
	m.replaces++
	return nil
}

func (m *Mirror) ListExpenses(_ context.Context) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense(nil), m.items...), nil
}

func (m *Mirror) Balance() core.Money {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// Replaces counts successful Replace calls.
func (m *Mirror) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}
