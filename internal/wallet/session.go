// Package wallet models the entry surface: the add-income and add-expense
// dialogs, their in-progress form values and the notice shown to the user.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
)

// DialogState is the open/closed state of one entry dialog.
type DialogState int

const (
	Closed DialogState = iota
	Open
)

func (s DialogState) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Dialog identifies an entry dialog.
type Dialog string

const (
	IncomeDialog  Dialog = "income"
	ExpenseDialog Dialog = "expense"
)

// Form field names accepted by SetExpenseField.
const (
	FieldTitle    = "title"
	FieldPrice    = "price"
	FieldCategory = "category"
	FieldDate     = "date"
)

var ErrUnknownField = errors.New("unknown form field")

type IncomeForm struct {
	Amount string
}

type ExpenseForm = core.ExpenseInput

// Ledger is the part of ledger.Ledger a session drives.
type Ledger interface {
	AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	AddIncome(ctx context.Context, amount string) (core.Money, error)
	Snapshot() ledger.State
}

// Session holds transient UI state for one user of the wallet.
type Session struct {
	mu         sync.Mutex
	ledger     Ledger
	categories []string
	logger     *log.Logger

	income        DialogState
	expense       DialogState
	incomeForm    IncomeForm
	expenseForm   ExpenseForm
	notice        string
	noticeDialog  Dialog
	noticeIsError bool
}

func NewSession(l Ledger, categories []string, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Session{
		ledger:     l,
		categories: append([]string(nil), categories...),
		logger:     logger.WithComponent(log.ComponentSession),
	}
}

func (s *Session) OpenIncome() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.income = Open
	s.clearNoticeLocked()
}

// CancelIncome closes the dialog. The typed amount is kept for the next open.
func (s *Session) CancelIncome() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.income = Closed
	s.clearNoticeLocked()
}

func (s *Session) SetIncome(amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomeForm.Amount = amount
}

func (s *Session) OpenExpense() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expense = Open
	s.clearNoticeLocked()
}

// CancelExpense closes the dialog. Typed fields are kept for the next open.
func (s *Session) CancelExpense() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expense = Closed
	s.clearNoticeLocked()
}

func (s *Session) SetExpenseField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case FieldTitle:
		s.expenseForm.Title = value
	case FieldPrice:
		s.expenseForm.Price = value
	case FieldCategory:
		s.expenseForm.Category = value
	case FieldDate:
		s.expenseForm.Date = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// SetExpenseForm replaces every expense field at once.
func (s *Session) SetExpenseForm(f ExpenseForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenseForm = f
}

// SubmitIncome applies the income form. On success the dialog closes and the
// form resets; on failure both stay as they are and the notice explains why.
func (s *Session) SubmitIncome(ctx context.Context) (core.Money, error) {
	s.mu.Lock()
	amount := s.incomeForm.Amount
	s.mu.Unlock()

	// Reject malformed amounts without holding the session, so a hostile
	// value never stalls page renders.
	if _, err := core.ParseIncomeAmount(amount); err != nil {
		return core.Money{}, s.rejectIncome(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.ledger.AddIncome(ctx, s.incomeForm.Amount)
	if err != nil {
		s.income = Open
		s.setErrorLocked(IncomeDialog, err)
		return core.Money{}, err
	}

	s.income = Closed
	s.incomeForm = IncomeForm{}
	s.notice = "Income added. New balance: " + balance.String()
	s.noticeDialog = ""
	s.noticeIsError = false
	return balance, nil
}

// SubmitExpense applies the expense form with the same open/reset rules as
// SubmitIncome.
func (s *Session) SubmitExpense(ctx context.Context) (core.Expense, error) {
	s.mu.Lock()
	form := s.expenseForm
	s.mu.Unlock()

	// The ledger owns the category vocabulary and checks it under its lock.
	if _, err := core.ParseExpense(form, nil); err != nil {
		return core.Expense{}, s.rejectExpense(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.ledger.AddExpense(ctx, s.expenseForm)
	if err != nil {
		s.expense = Open
		s.setErrorLocked(ExpenseDialog, err)
		return core.Expense{}, err
	}

	s.expense = Closed
	s.expenseForm = ExpenseForm{}
	s.notice = fmt.Sprintf("Expense %q added.", e.Title)
	s.noticeDialog = ""
	s.noticeIsError = false
	return e, nil
}

func (s *Session) rejectIncome(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.income = Open
	s.setErrorLocked(IncomeDialog, err)
	return err
}

func (s *Session) rejectExpense(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expense = Open
	s.setErrorLocked(ExpenseDialog, err)
	return err
}

func (s *Session) setErrorLocked(d Dialog, err error) {
	s.notice = Message(err)
	s.noticeDialog = d
	s.noticeIsError = true
	if !core.IsUserError(err) {
		s.logger.Error("Wallet update failed",
			"dialog", string(d),
			log.FieldError, err)
	}
}

func (s *Session) clearNoticeLocked() {
	s.notice = ""
	s.noticeDialog = ""
	s.noticeIsError = false
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearNoticeLocked()
}

// Message is the user-facing text for an error.
func Message(err error) string {
	switch core.ErrorKind(err) {
	case "":
		return ""
	case core.KindInsufficientBalance:
		return "Couldn't add expense, insufficient wallet balance."
	case core.KindInvalidIncomeAmount:
		return "Enter an income amount of zero or more."
	case core.KindInvalidAmount:
		return "Enter a positive expense amount."
	case core.KindEmptyTitle:
		return "Enter an expense title."
	case core.KindTitleTooLong:
		return "The expense title is too long."
	case core.KindEmptyCategory:
		return "Select a category."
	case core.KindUnknownCategory:
		return "Select one of the listed categories."
	case core.KindInvalidDate:
		return "Enter a valid date."
	case core.KindInvalidExpense:
		return "The expense is not valid."
	default:
		return "Something went wrong while saving. Please try again."
	}
}
