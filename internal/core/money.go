// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Conversions to and from the decimal
// unit representation used on forms and in storage go through
// shopspring/decimal so no float rounding leaks into the balance.
package core

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents bounds any single parsed amount (one trillion units).
const MaxAmountCents int64 = 100_000_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmountCents)

// amountPattern is the only shape handed to decimal.NewFromString. Exponent
// forms such as "1e-999999999" make the decimal library allocate without
// bound, so they are refused along with anything longer than the caps.
var amountPattern = regexp.MustCompile(`^-?[0-9]{1,16}(\.[0-9]{1,16})?$`)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns ErrInvalidAmount for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
//	ParseDecimalToCents("12.344") -> 1234, nil (rounds down)
func ParseDecimalToCents(s string) (int64, error) {
	d, err := parseUnsignedDecimal(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseIncomeAmount parses an income entry. Fractional units are dropped, so
// "500.9" adds 500 and "0.9" adds nothing but still succeeds. Empty,
// non-numeric and negative inputs are rejected with ErrInvalidIncomeAmount.
func ParseIncomeAmount(s string) (Money, error) {
	d, err := parseUnsignedDecimal(s)
	if err != nil {
		return Money{}, ErrInvalidIncomeAmount
	}
	cents := d.Floor().Shift(2)
	if cents.IsNegative() || cents.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidIncomeAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func parseUnsignedDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return parseDecimal(strings.Replace(s, ",", ".", 1))
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(s) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return decimal.NewFromString(s)
}

// FromUnits builds Money from a whole number of currency units.
func FromUnits(units int64) Money {
	return Money{Cents: units * 100}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount in units with at most two decimals ("3800", "12.5").
func (m Money) String() string {
	return m.Decimal().String()
}

// Add and Sub never validate; callers check preconditions first.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) LessThan(o Money) bool { return m.Cents < o.Cents }

// MarshalJSON writes the amount as a JSON number in units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in units. Records
// written by older clients stored the form text verbatim.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*m = Money{}
		return nil
	}
	d, err := parseDecimal(string(b))
	if err != nil {
		return ErrInvalidAmount
	}
	*m = Money{Cents: d.Shift(2).Round(0).IntPart()}
	return nil
}

// Sum adds up the price of every expense.
func Sum(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Price)
	}
	return total
}
