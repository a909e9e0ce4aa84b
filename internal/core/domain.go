package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format used on forms and in storage.
	DateLayout = "2006-01-02"

	maxTitleLength = 200
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single logged outgoing transaction.
	Expense struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Price    Money  `json:"price"`
		Category string `json:"category"`
		Date     Date   `json:"date"`
	}

	// ExpenseInput is the untyped candidate coming from an entry form.
	ExpenseInput struct {
		Title    string `json:"title"`
		Price    string `json:"price"`
		Category string `json:"category"`
		Date     string `json:"date"`
	}

	// Categories reports whether a category name belongs to the vocabulary.
	Categories interface {
		Contains(name string) bool
	}
)

var (
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidIncomeAmount = errors.New("invalid income amount")

	// ErrInvalidExpense is matched by every expense validation failure.
	ErrInvalidExpense  = errors.New("invalid expense")
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be a positive number", ErrInvalidExpense)
	ErrEmptyTitle      = fmt.Errorf("%w: empty title", ErrInvalidExpense)
	ErrTitleTooLong    = fmt.Errorf("%w: title too long (max %d characters)", ErrInvalidExpense, maxTitleLength)
	ErrEmptyCategory   = fmt.Errorf("%w: empty category", ErrInvalidExpense)
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrInvalidExpense)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrInvalidExpense)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Dates that do not exist (2024-02-30) are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks every field except the ID, which is assigned by the ledger.
func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if err := e.Price.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return e.Date.Validate()
}

// ParseExpense turns form input into a typed Expense. When cats is non-nil the
// category must belong to it.
func ParseExpense(in ExpenseInput, cats Categories) (Expense, error) {
	e := Expense{
		Title:    strings.TrimSpace(in.Title),
		Category: strings.TrimSpace(in.Category),
	}
	if e.Title == "" {
		return Expense{}, ErrEmptyTitle
	}
	if len(e.Title) > maxTitleLength {
		return Expense{}, ErrTitleTooLong
	}

	cents, err := ParseDecimalToCents(in.Price)
	if err != nil {
		return Expense{}, err
	}
	e.Price = Money{Cents: cents}

	if e.Category == "" {
		return Expense{}, ErrEmptyCategory
	}
	if cats != nil && !cats.Contains(e.Category) {
		return Expense{}, fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}

	if e.Date, err = ParseDate(in.Date); err != nil {
		return Expense{}, err
	}
	return e, e.Validate()
}
