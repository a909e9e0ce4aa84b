package http

import (
	"net/http"

	"wallet/internal/core"
)

type walletResponse struct {
	Balance       core.Money     `json:"balance"`
	TotalExpenses core.Money     `json:"totalExpenses"`
	Expenses      []core.Expense `json:"expenses"`
	Categories    []string       `json:"categories"`
}

type balanceResponse struct {
	Balance core.Money `json:"balance"`
}

type totalResponse struct {
	Total core.Money `json:"total"`
}

func (s *Server) handleAPIWallet(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.Snapshot()
	expenses := state.Expenses
	if expenses == nil {
		expenses = []core.Expense{}
	}
	categories := s.categories
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, r, http.StatusOK, walletResponse{
		Balance:       state.Balance,
		TotalExpenses: core.Sum(expenses),
		Expenses:      expenses,
		Categories:    categories,
	})
}

func (s *Server) handleAPIAddIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := s.ledger.AddIncome(r.Context(), string(req.Amount))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, balanceResponse{Balance: balance})
}

func (s *Server) handleAPIAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.ledger.AddExpense(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

func (s *Server) handleAPIListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses := s.ledger.Snapshot().Expenses
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, r, http.StatusOK, expenses)
}

func (s *Server) handleAPITotal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, totalResponse{Total: core.Sum(s.ledger.Snapshot().Expenses)})
}

func (s *Server) handleAPIByCategory(w http.ResponseWriter, r *http.Request) {
	totals := core.TotalsByCategory(s.ledger.Snapshot().Expenses)
	if totals == nil {
		totals = []core.CategoryAmount{}
	}
	writeJSON(w, r, http.StatusOK, totals)
}
