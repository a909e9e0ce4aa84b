package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/wallet"
)

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps a ledger error to the HTTP status the API reports.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInsufficientBalance):
		return http.StatusConflict
	case core.IsUserError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := apiError{Error: wallet.Message(err), Kind: core.ErrorKind(err)}
	if status == http.StatusBadRequest {
		body = apiError{Error: err.Error(), Kind: "bad_request"}
	}
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldErrorKind, body.Kind)
	}
	writeJSON(w, r, status, body)
}
