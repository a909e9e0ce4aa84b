package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wallet/internal/core"
)

const maxBodyBytes = 1 << 16

var errBadRequest = errors.New("malformed request body")

// textOrNumber accepts a JSON string or number and keeps its literal text,
// so amounts reach core parsing exactly as the client sent them.
type textOrNumber string

func (t *textOrNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = textOrNumber(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number: %w", err)
		}
		*t = textOrNumber(n.String())
	}
	return nil
}

type incomeRequest struct {
	Amount textOrNumber `json:"amount"`
}

type expenseRequest struct {
	Title    string       `json:"title"`
	Price    textOrNumber `json:"price"`
	Category string       `json:"category"`
	Date     string       `json:"date"`
}

func (e expenseRequest) input() core.ExpenseInput {
	return core.ExpenseInput{
		Title:    sanitizeInput(e.Title),
		Price:    strings.TrimSpace(string(e.Price)),
		Category: sanitizeInput(e.Category),
		Date:     strings.TrimSpace(e.Date),
	}
}

// decodeJSON reads one JSON object from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errBadRequest)
	}
	return nil
}

// parseExpenseForm reads the expense dialog fields from a form post.
func parseExpenseForm(r *http.Request) (core.ExpenseInput, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return core.ExpenseInput{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return expenseRequest{
		Title:    r.PostForm.Get("title"),
		Price:    textOrNumber(r.PostForm.Get("price")),
		Category: r.PostForm.Get("category"),
		Date:     r.PostForm.Get("date"),
	}.input(), nil
}

func parseIncomeForm(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return strings.TrimSpace(r.PostForm.Get("amount")), nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
