package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Amount  string `json:"amount,omitempty"`
	Balance string `json:"balance,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses. Business
// errors keep their message; anything else gets a generic one.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *ledger.InsufficientFundsError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   insufficient.Error(),
			Amount:  insufficient.Amount.StringFixed(ledger.Scale),
			Balance: insufficient.Balance.StringFixed(ledger.Scale),
		})
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "wallet not found")
	case errors.Is(err, ledger.ErrIdempotencyKeyReused):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrOperationFailed):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, ledger.ErrOperationFailed.Error())
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
