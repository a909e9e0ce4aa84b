// Package ledger implements the wallet: a balance and the ordered list of
// expenses charged against it, mirrored to durable storage after every change.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/storage"
)

// DefaultBalance seeds storage the first time the wallet is opened.
var DefaultBalance = core.FromUnits(5000)

// State is the persisted wallet.
type State struct {
	Balance  core.Money     `json:"balance"`
	Expenses []core.Expense `json:"expenses"`
}

func (s State) clone() State {
	return State{
		Balance:  s.Balance,
		Expenses: append([]core.Expense(nil), s.Expenses...),
	}
}

// Listener is told about every committed change to the balance or the
// expense list, with the full state after the change.
type Listener interface {
	ExpenseListUpdated(ctx context.Context, s State) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, s State) error

func (f ListenerFunc) ExpenseListUpdated(ctx context.Context, s State) error { return f(ctx, s) }

type Options struct {
	// DefaultBalance overrides the package default when non-zero.
	DefaultBalance core.Money
	// Categories restricts expense categories. Nil accepts any non-empty name.
	Categories core.Categories
	Logger     *log.Logger
	// NewID generates expense IDs. Defaults to random UUIDs.
	NewID func() string
}

// Ledger owns the wallet state. Methods are safe for concurrent use; each
// mutation is persisted before it becomes visible.
type Ledger struct {
	mu        sync.Mutex
	store     storage.KV
	state     State
	listeners []Listener

	defaultBalance core.Money
	categories     core.Categories
	logger         *log.Logger
	newID          func() string
}

// Open migrates legacy keys, seeds the default balance if needed and loads
// the persisted state.
func Open(ctx context.Context, store storage.KV, opts Options) (*Ledger, error) {
	l := &Ledger{
		store:          store,
		defaultBalance: opts.DefaultBalance,
		categories:     opts.Categories,
		logger:         opts.Logger,
		newID:          opts.NewID,
	}
	if l.defaultBalance.Cents == 0 {
		l.defaultBalance = DefaultBalance
	}
	if l.logger == nil {
		l.logger = log.New(log.DefaultConfig())
	}
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	if l.newID == nil {
		l.newID = func() string { return uuid.NewString() }
	}

	if err := l.migrateLegacyBalance(ctx); err != nil {
		return nil, err
	}
	if _, err := l.Seed(ctx); err != nil {
		return nil, err
	}
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Seed writes the default balance when none has ever been persisted. It
// reports whether it wrote anything; a second call is a no-op.
func (l *Ledger) Seed(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok, err := l.store.Get(ctx, storage.KeyBalance)
	if err != nil {
		return false, fmt.Errorf("read balance: %w", err)
	}
	if ok {
		return false, nil
	}

	b, _ := json.Marshal(l.defaultBalance)
	if err := l.store.PutBatch(ctx, map[string][]byte{storage.KeyBalance: b}); err != nil {
		return false, fmt.Errorf("seed balance: %w", err)
	}
	l.state.Balance = l.defaultBalance

	l.logger.InfoContext(ctx, "Seeded default balance",
		log.FieldOperation, log.OpSeed,
		log.FieldBalance, l.defaultBalance.Cents)
	return true, nil
}

func (l *Ledger) load(ctx context.Context) error {
	var next State

	raw, ok, err := l.store.Get(ctx, storage.KeyBalance)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &next.Balance); err != nil {
			return fmt.Errorf("decode %s: %w", storage.KeyBalance, err)
		}
	}

	raw, ok, err = l.store.Get(ctx, storage.KeyExpenses)
	if err != nil {
		return fmt.Errorf("read expenses: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &next.Expenses); err != nil {
			return fmt.Errorf("decode %s: %w", storage.KeyExpenses, err)
		}
	}
	for i := range next.Expenses {
		if next.Expenses[i].ID == "" {
			next.Expenses[i].ID = l.newID()
			l.logger.WarnContext(ctx, "Assigned id to stored expense without one",
				log.FieldExpenseID, next.Expenses[i].ID)
		}
	}

	l.mu.Lock()
	l.state = next
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Wallet loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldBalance, next.Balance.Cents,
		log.FieldExpenses, len(next.Expenses))
	return nil
}

// AddExpense validates the candidate, charges it against the balance and
// appends it to the list. A price above the balance fails with
// core.ErrInsufficientBalance and changes nothing.
func (l *Ledger) AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	e, err := core.ParseExpense(in, l.categories)
	if err != nil {
		return core.Expense{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Balance.LessThan(e.Price) {
		return core.Expense{}, fmt.Errorf("%w: price %s exceeds balance %s",
			core.ErrInsufficientBalance, e.Price, l.state.Balance)
	}

	e.ID = l.newID()
	next := l.state.clone()
	next.Balance = next.Balance.Sub(e.Price)
	next.Expenses = append(next.Expenses, e)

	if err := l.persist(ctx, next, true); err != nil {
		return core.Expense{}, err
	}
	l.state = next

	fields := log.NewFields().
		WithOperation(log.OpAddExpense).
		WithExpense(e.ID, e.Title, e.Price.Cents, e.Category).
		WithBalance(next.Balance.Cents)
	l.logger.InfoContext(ctx, "Expense added", fields.ToSlice()...)

	l.notifyLocked(ctx)
	return e, nil
}

// AddIncome adds a whole number of units to the balance and returns the new
// balance. Amounts below one unit succeed without changing anything. Invalid
// input fails with core.ErrInvalidIncomeAmount.
func (l *Ledger) AddIncome(ctx context.Context, amount string) (core.Money, error) {
	income, err := core.ParseIncomeAmount(amount)
	if err != nil {
		return core.Money{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if income.Cents == 0 {
		return l.state.Balance, nil
	}

	next := l.state.clone()
	next.Balance = next.Balance.Add(income)
	if err := l.persist(ctx, next, false); err != nil {
		return core.Money{}, err
	}
	l.state = next

	l.logger.InfoContext(ctx, "Income added",
		log.FieldOperation, log.OpAddIncome,
		log.FieldAmountCents, income.Cents,
		log.FieldBalance, next.Balance.Cents)

	l.notifyLocked(ctx)
	return next.Balance, nil
}

// persist writes the balance, and the expense list when withExpenses is set,
// in one batch.
func (l *Ledger) persist(ctx context.Context, s State, withExpenses bool) error {
	entries := map[string][]byte{}

	b, err := json.Marshal(s.Balance)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}
	entries[storage.KeyBalance] = b

	if withExpenses {
		list := s.Expenses
		if list == nil {
			list = []core.Expense{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode expenses: %w", err)
		}
		entries[storage.KeyExpenses] = b
	}

	if err := l.store.PutBatch(ctx, entries); err != nil {
		return fmt.Errorf("persist wallet: %w", err)
	}
	return nil
}

// Subscribe registers a listener and immediately delivers the current state,
// so a new mirror starts in sync.
func (l *Ledger) Subscribe(ctx context.Context, listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
	l.deliver(ctx, listener, l.state.clone())
}

// notifyLocked runs listeners in registration order while the state lock is
// held, so they observe changes in commit order. Listeners must not call back
// into the ledger.
func (l *Ledger) notifyLocked(ctx context.Context) {
	for _, listener := range l.listeners {
		l.deliver(ctx, listener, l.state.clone())
	}
}

func (l *Ledger) deliver(ctx context.Context, listener Listener, s State) {
	if err := listener.ExpenseListUpdated(ctx, s); err != nil {
		l.logger.ErrorContext(ctx, "Expense list listener failed",
			log.FieldOperation, log.OpNotify,
			log.FieldError, err)
	}
}

// Balance returns the current balance.
func (l *Ledger) Balance() core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Balance
}

// Expenses returns a copy of the expense list in insertion order.
func (l *Ledger) Expenses() []core.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Expense(nil), l.state.Expenses...)
}

// TotalExpenses sums the price of every recorded expense.
func (l *Ledger) TotalExpenses() core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.Sum(l.state.Expenses)
}

// CategoryTotals sums expenses per category, in first-seen order.
func (l *Ledger) CategoryTotals() []core.CategoryAmount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.TotalsByCategory(l.state.Expenses)
}

// Snapshot returns a copy of the whole state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

// Ping checks the underlying store.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}
