package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/storage"
	"wallet/internal/taxonomy"
)

var cats = taxonomy.New([]string{"Food", "Entertainment", "Travel"})

func openLedger(t *testing.T, store storage.KV) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), store, Options{Categories: cats, Logger: log.Discard()})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	return l
}

func groceries(price string) core.ExpenseInput {
	return core.ExpenseInput{Title: "Groceries", Price: price, Category: "Food", Date: "2024-01-01"}
}

func storedBalance(t *testing.T, store storage.KV) string {
	t.Helper()
	v, ok, err := store.Get(context.Background(), storage.KeyBalance)
	if err != nil || !ok {
		t.Fatalf("balance not stored: ok=%v err=%v", ok, err)
	}
	return string(v)
}

func TestOpenSeedsDefaultBalance(t *testing.T) {
	store := storage.NewMemoryStore()
	l := openLedger(t, store)

	if l.Balance().Cents != 500000 {
		t.Fatalf("expected default balance 5000, got %s", l.Balance())
	}
	if got := storedBalance(t, store); got != "5000" {
		t.Fatalf("expected stored 5000, got %s", got)
	}
	if len(l.Expenses()) != 0 {
		t.Fatalf("expected no expenses")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	l := openLedger(t, store)

	wrote, err := l.Seed(context.Background())
	if err != nil || wrote {
		t.Fatalf("second seed must not write: wrote=%v err=%v", wrote, err)
	}
	if got := storedBalance(t, store); got != "5000" {
		t.Fatalf("seed changed stored balance: %s", got)
	}

	// An existing balance is never overwritten by seeding
	if _, err := l.AddIncome(context.Background(), "1"); err != nil {
		t.Fatalf("add income: %v", err)
	}
	if wrote, _ := l.Seed(context.Background()); wrote {
		t.Fatalf("seed overwrote an existing balance")
	}
	if got := storedBalance(t, store); got != "5001" {
		t.Fatalf("expected 5001, got %s", got)
	}
}

func TestCustomDefaultBalance(t *testing.T) {
	l, err := Open(context.Background(), storage.NewMemoryStore(), Options{
		DefaultBalance: core.FromUnits(100),
		Logger:         log.Discard(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if l.Balance().Cents != 10000 {
		t.Fatalf("expected 100, got %s", l.Balance())
	}
}

func TestWalletScenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	l := openLedger(t, store)

	// 5000 - 1200 = 3800
	e, err := l.AddExpense(ctx, groceries("1200"))
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("expense id not assigned")
	}
	if l.Balance().String() != "3800" || len(l.Expenses()) != 1 {
		t.Fatalf("expected 3800 and 1 expense, got %s and %d", l.Balance(), len(l.Expenses()))
	}

	// 9000 > 3800 is rejected
	_, err = l.AddExpense(ctx, core.ExpenseInput{Title: "TV", Price: "9000", Category: "Entertainment", Date: "2024-01-02"})
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if l.Balance().String() != "3800" || len(l.Expenses()) != 1 {
		t.Fatalf("rejected expense mutated state: %s, %d", l.Balance(), len(l.Expenses()))
	}

	// 3800 + 500 = 4300
	bal, err := l.AddIncome(ctx, "500")
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	if bal.String() != "4300" || l.Balance().String() != "4300" {
		t.Fatalf("expected 4300, got %s", bal)
	}

	// Invalid income leaves balance unchanged
	for _, in := range []string{"", "abc"} {
		if _, err := l.AddIncome(ctx, in); !errors.Is(err, core.ErrInvalidIncomeAmount) {
			t.Fatalf("%q expected ErrInvalidIncomeAmount, got %v", in, err)
		}
	}
	if l.Balance().String() != "4300" {
		t.Fatalf("invalid income changed balance: %s", l.Balance())
	}

	if got := storedBalance(t, store); got != "4300" {
		t.Fatalf("expected stored 4300, got %s", got)
	}
	if _, ok, _ := store.Get(ctx, storage.KeyLegacyBalance); ok {
		t.Fatalf("legacy balance key must never be written")
	}
}

func TestAddExpenseDecreasesByExactPrice(t *testing.T) {
	ctx := context.Background()
	prices := []string{"0.01", "12.34", "999.99", "4000", "5000"}
	for _, p := range prices {
		t.Run(p, func(t *testing.T) {
			l := openLedger(t, storage.NewMemoryStore())
			before := l.Balance()
			e, err := l.AddExpense(ctx, groceries(p))
			if err != nil {
				t.Fatalf("add expense: %v", err)
			}
			if before.Sub(l.Balance()) != e.Price {
				t.Fatalf("balance moved by %s, price %s", before.Sub(l.Balance()), e.Price)
			}
			if len(l.Expenses()) != 1 {
				t.Fatalf("expected exactly one record")
			}
		})
	}
}

func TestAddExpenseEqualToBalanceIsAllowed(t *testing.T) {
	l := openLedger(t, storage.NewMemoryStore())
	if _, err := l.AddExpense(context.Background(), groceries("5000")); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if l.Balance().Cents != 0 {
		t.Fatalf("expected zero balance, got %s", l.Balance())
	}
	if _, err := l.AddExpense(context.Background(), groceries("0.01")); !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance on empty wallet, got %v", err)
	}
}

func TestAddExpenseAssignsUniqueIDs(t *testing.T) {
	l := openLedger(t, storage.NewMemoryStore())
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		e, err := l.AddExpense(context.Background(), groceries("1"))
		if err != nil {
			t.Fatalf("add expense %d: %v", i, err)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestAddExpenseValidation(t *testing.T) {
	l := openLedger(t, storage.NewMemoryStore())
	tests := []struct {
		name string
		in   core.ExpenseInput
		want error
	}{
		{"unknown category", core.ExpenseInput{Title: "a", Price: "1", Category: "Rent", Date: "2024-01-01"}, core.ErrUnknownCategory},
		{"non-numeric price", core.ExpenseInput{Title: "a", Price: "ten", Category: "Food", Date: "2024-01-01"}, core.ErrInvalidAmount},
		{"missing date", core.ExpenseInput{Title: "a", Price: "1", Category: "Food"}, core.ErrInvalidDate},
		{"missing title", core.ExpenseInput{Price: "1", Category: "Food", Date: "2024-01-01"}, core.ErrEmptyTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.AddExpense(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if l.Balance().Cents != 500000 || len(l.Expenses()) != 0 {
		t.Fatalf("invalid input mutated state")
	}
}

func TestIncomeIsTruncated(t *testing.T) {
	l := openLedger(t, storage.NewMemoryStore())
	bal, err := l.AddIncome(context.Background(), "250.99")
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	if bal.String() != "5250" {
		t.Fatalf("expected 5250, got %s", bal)
	}
}

func TestIncomeBelowOneUnitIsAZeroTopUp(t *testing.T) {
	store := storage.NewMemoryStore()
	l := openLedger(t, store)
	for _, in := range []string{"0", "0.9"} {
		bal, err := l.AddIncome(context.Background(), in)
		if err != nil {
			t.Fatalf("%q: expected success, got %v", in, err)
		}
		if bal.String() != "5000" || l.Balance().String() != "5000" {
			t.Fatalf("%q: expected unchanged 5000, got %s", in, bal)
		}
	}
	if got := storedBalance(t, store); got != "5000" {
		t.Fatalf("expected stored 5000, got %s", got)
	}
	if _, err := l.AddIncome(context.Background(), "-1"); !errors.Is(err, core.ErrInvalidIncomeAmount) {
		t.Fatalf("negative income: expected ErrInvalidIncomeAmount, got %v", err)
	}
}

func TestStorageFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	l := openLedger(t, store)

	boom := errors.New("quota exceeded")
	store.FailWrites = boom

	if _, err := l.AddExpense(ctx, groceries("10")); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := l.AddIncome(ctx, "10"); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if l.Balance().Cents != 500000 || len(l.Expenses()) != 0 {
		t.Fatalf("failed write leaked into memory: %s, %d", l.Balance(), len(l.Expenses()))
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	l := openLedger(t, store)
	first, _ := l.AddExpense(ctx, groceries("1200"))
	second, _ := l.AddExpense(ctx, core.ExpenseInput{Title: "Train", Price: "80.5", Category: "Travel", Date: "2023-12-30"})

	reopened := openLedger(t, store)
	got := reopened.Expenses()
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("expense order not preserved: %+v", got)
	}
	if got[1].Price.Cents != 8050 || got[1].Date.String() != "2023-12-30" {
		t.Fatalf("expense fields not preserved: %+v", got[1])
	}
	if reopened.Balance().String() != "3719.5" {
		t.Fatalf("expected 3719.5, got %s", reopened.Balance())
	}
	if reopened.TotalExpenses().String() != "1280.5" {
		t.Fatalf("expected total 1280.5, got %s", reopened.TotalExpenses())
	}
}

func TestLoadsRecordsWrittenByBrowserWidget(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	_ = store.PutBatch(ctx, map[string][]byte{
		storage.KeyBalance:  []byte("3800"),
		storage.KeyExpenses: []byte(`[{"id":"7f0c","title":"Groceries","price":"1200","category":"Food","date":"2024-01-01"},{"id":null,"title":"Bus","price":"2","category":"Travel","date":"2024-01-02"}]`),
	})

	l := openLedger(t, store)
	exp := l.Expenses()
	if len(exp) != 2 || exp[0].Price.Cents != 120000 || exp[0].ID != "7f0c" {
		t.Fatalf("unexpected expenses: %+v", exp)
	}
	if exp[1].ID == "" {
		t.Fatalf("expense without id must be assigned one on load")
	}
	if l.Balance().String() != "3800" {
		t.Fatalf("expected 3800, got %s", l.Balance())
	}
}

func TestOpenFailsOnCorruptData(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.PutBatch(context.Background(), map[string][]byte{storage.KeyExpenses: []byte("{not json")})
	if _, err := Open(context.Background(), store, Options{Logger: log.Discard()}); err == nil {
		t.Fatalf("expected error for corrupt expenses")
	}
}

func TestLegacyBalanceMigration(t *testing.T) {
	ctx := context.Background()

	t.Run("adopted when canonical missing", func(t *testing.T) {
		store := storage.NewMemoryStore()
		_ = store.PutBatch(ctx, map[string][]byte{storage.KeyLegacyBalance: []byte("3800")})
		l := openLedger(t, store)
		if l.Balance().String() != "3800" {
			t.Fatalf("expected legacy 3800 adopted, got %s", l.Balance())
		}
		if _, ok, _ := store.Get(ctx, storage.KeyLegacyBalance); ok {
			t.Fatalf("legacy key not removed")
		}
	})

	t.Run("discarded when canonical present", func(t *testing.T) {
		store := storage.NewMemoryStore()
		_ = store.PutBatch(ctx, map[string][]byte{
			storage.KeyLegacyBalance: []byte("3800"),
			storage.KeyBalance:       []byte("5500"),
		})
		l := openLedger(t, store)
		if l.Balance().String() != "5500" {
			t.Fatalf("expected canonical 5500, got %s", l.Balance())
		}
		if _, ok, _ := store.Get(ctx, storage.KeyLegacyBalance); ok {
			t.Fatalf("legacy key not removed")
		}
	})

	// Browser data whose last change was an expense: walletBalance holds the
	// charged balance, totalBalance still holds the seed. The seed wins.
	t.Run("post-expense legacy balance is dropped", func(t *testing.T) {
		store := storage.NewMemoryStore()
		_ = store.PutBatch(ctx, map[string][]byte{
			storage.KeyBalance:       []byte("5000"),
			storage.KeyLegacyBalance: []byte("3800"),
			storage.KeyExpenses:      []byte(`[{"id":"7f0c","title":"Groceries","price":1200,"category":"Food","date":"2024-01-01"}]`),
		})
		l := openLedger(t, store)
		if l.Balance().String() != "5000" {
			t.Fatalf("expected canonical 5000, got %s", l.Balance())
		}
		if len(l.Expenses()) != 1 {
			t.Fatalf("expense list must survive the migration, got %d", len(l.Expenses()))
		}
		if got := storedBalance(t, store); got != "5000" {
			t.Fatalf("expected stored 5000, got %s", got)
		}
	})

	t.Run("unreadable legacy value", func(t *testing.T) {
		store := storage.NewMemoryStore()
		_ = store.PutBatch(ctx, map[string][]byte{storage.KeyLegacyBalance: []byte(`"abc"`)})
		l := openLedger(t, store)
		if l.Balance().Cents != 500000 {
			t.Fatalf("expected default balance, got %s", l.Balance())
		}
	})
}

type recorder struct {
	mu     sync.Mutex
	states []State
	err    error
}

func (r *recorder) ExpenseListUpdated(_ context.Context, s State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	return r.err
}

func TestListenersReceiveFullList(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, storage.NewMemoryStore())
	rec := &recorder{}
	l.Subscribe(ctx, rec)

	if len(rec.states) != 1 || len(rec.states[0].Expenses) != 0 {
		t.Fatalf("subscribe must deliver current state, got %+v", rec.states)
	}

	_, _ = l.AddExpense(ctx, groceries("100"))
	_, _ = l.AddExpense(ctx, groceries("200"))
	_, _ = l.AddIncome(ctx, "10")
	_, _ = l.AddExpense(ctx, groceries("100000")) // rejected

	if len(rec.states) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(rec.states))
	}
	last := rec.states[3]
	if len(last.Expenses) != 2 || last.Balance.String() != "4710" {
		t.Fatalf("unexpected last notification: %+v", last)
	}

	// Listeners get copies
	last.Expenses[0].Title = "changed"
	if l.Expenses()[0].Title != "Groceries" {
		t.Fatalf("listener mutated ledger state")
	}
}

func TestIncomeNotifiesListeners(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, storage.NewMemoryStore())
	rec := &recorder{}
	l.Subscribe(ctx, rec)

	if _, err := l.AddIncome(ctx, "500"); err != nil {
		t.Fatalf("add income: %v", err)
	}
	if len(rec.states) != 2 {
		t.Fatalf("expected a notification for the income, got %d", len(rec.states))
	}
	if got := rec.states[1].Balance.String(); got != "5500" {
		t.Fatalf("listener saw balance %s, want 5500", got)
	}

	// A zero top-up commits nothing, so nobody is told.
	if _, err := l.AddIncome(ctx, "0.9"); err != nil {
		t.Fatalf("add zero income: %v", err)
	}
	if len(rec.states) != 2 {
		t.Fatalf("zero income must not notify, got %d notifications", len(rec.states))
	}
}

func TestFailingListenerDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, storage.NewMemoryStore())
	l.Subscribe(ctx, &recorder{err: errors.New("broker down")})

	if _, err := l.AddExpense(ctx, groceries("100")); err != nil {
		t.Fatalf("listener failure must not fail the expense: %v", err)
	}
	if len(l.Expenses()) != 1 {
		t.Fatalf("expense not recorded")
	}
}

func TestConcurrentExpensesNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, storage.NewMemoryStore())

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.AddExpense(ctx, groceries("300")); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 5000 / 300 = 16 accepted, 200 left
	if accepted != 16 || l.Balance().String() != "200" {
		t.Fatalf("accepted=%d balance=%s", accepted, l.Balance())
	}
}

func TestCategoryTotals(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t, storage.NewMemoryStore())
	_, _ = l.AddExpense(ctx, groceries("10"))
	_, _ = l.AddExpense(ctx, core.ExpenseInput{Title: "Bus", Price: "5", Category: "Travel", Date: "2024-01-01"})
	_, _ = l.AddExpense(ctx, groceries("2.5"))

	got := l.CategoryTotals()
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got)
	}
	if fmt.Sprint(got[0].Name, got[0].Amount) != "Food12.5" || fmt.Sprint(got[1].Name, got[1].Amount) != "Travel5" {
		t.Fatalf("unexpected totals: %+v", got)
	}
}

func TestSnapshotJSON(t *testing.T) {
	l, err := Open(context.Background(), storage.NewMemoryStore(), Options{
		Logger: log.Discard(),
		NewID:  func() string { return "fixed" },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = l.AddExpense(context.Background(), groceries("1200"))

	b, _ := json.Marshal(l.Snapshot())
	want := `{"balance":3800,"expenses":[{"id":"fixed","title":"Groceries","price":1200,"category":"Food","date":"2024-01-01"}]}`
	if string(b) != want {
		t.Fatalf("got %s", b)
	}
}
