package wallet

import "wallet/internal/core"

// ViewModel is everything the wallet page renders.
type ViewModel struct {
	Balance        core.Money
	TotalExpenses  core.Money
	Expenses       []core.Expense
	CategoryTotals []core.CategoryAmount
	Categories     []string

	IncomeDialog  DialogState
	ExpenseDialog DialogState
	IncomeForm    IncomeForm
	ExpenseForm   ExpenseForm

	Notice        string
	NoticeDialog  Dialog
	NoticeIsError bool
}

func (v ViewModel) IncomeOpen() bool  { return v.IncomeDialog == Open }
func (v ViewModel) ExpenseOpen() bool { return v.ExpenseDialog == Open }

// View captures the session and ledger state in one consistent copy.
func (s *Session) View() ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ledger.Snapshot()
	return ViewModel{
		Balance:        state.Balance,
		TotalExpenses:  core.Sum(state.Expenses),
		Expenses:       state.Expenses,
		CategoryTotals: core.TotalsByCategory(state.Expenses),
		Categories:     append([]string(nil), s.categories...),

		IncomeDialog:  s.income,
		ExpenseDialog: s.expense,
		IncomeForm:    s.incomeForm,
		ExpenseForm:   s.expenseForm,

		Notice:        s.notice,
		NoticeDialog:  s.noticeDialog,
		NoticeIsError: s.noticeIsError,
	}
}
