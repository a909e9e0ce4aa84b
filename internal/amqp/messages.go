package amqp

import (
	"encoding/json"
	"time"

	"wallet/internal/core"
)

// ExpenseListUpdated carries the whole expense list and the balance after a
// change. Each message supersedes every earlier one, so consumers only need
// the most recent.
type ExpenseListUpdated struct {
	Expenses  []core.Expense `json:"expenses"`
	Balance   core.Money     `json:"balance"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewExpenseListUpdated copies the list so later ledger changes cannot leak
// into a queued message.
func NewExpenseListUpdated(expenses []core.Expense, balance core.Money) *ExpenseListUpdated {
	list := make([]core.Expense, len(expenses))
	copy(list, expenses)
	return &ExpenseListUpdated{
		Expenses:  list,
		Balance:   balance,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseListUpdated) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseListUpdatedFromJSON creates a message from JSON bytes
func ExpenseListUpdatedFromJSON(data []byte) (*ExpenseListUpdated, error) {
	var msg ExpenseListUpdated
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Expenses == nil {
		msg.Expenses = []core.Expense{}
	}
	return &msg, nil
}
