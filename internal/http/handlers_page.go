package http

import (
	"bytes"
	"net/http"
	"time"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/wallet"
)

type pageData struct {
	wallet.ViewModel
	Today    string
	Currency string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK)
}

// renderIndex executes the page into a buffer first so a template failure
// never leaves a half-written 200 behind.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := pageData{
		ViewModel: s.session.View(),
		Today:     time.Now().Format(core.DateLayout),
		Currency:  s.currency,
	}
	if data.ExpenseForm.Date == "" {
		data.ExpenseForm.Date = data.Today
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handleDialog runs a session transition and sends the browser back to the page.
func (s *Server) handleDialog(transition func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transition()
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleSubmitIncome(w http.ResponseWriter, r *http.Request) {
	amount, err := parseIncomeForm(r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s.session.SetIncome(amount)

	if _, err := s.session.SubmitIncome(r.Context()); err != nil {
		s.renderIndex(w, r, pageStatus(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	in, err := parseExpenseForm(r)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s.session.SetExpenseForm(in)

	if _, err := s.session.SubmitExpense(r.Context()); err != nil {
		s.renderIndex(w, r, pageStatus(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// pageStatus is the status for a re-rendered page after a rejected submit.
func pageStatus(err error) int {
	if core.IsUserError(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
