// Package api exposes the ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

var (
	errAmountRequired  = errors.New("amount is required")
	errAmountMalformed = errors.New("amount must be a number or a numeric string")
)

// Ledger is the part of *ledger.Ledger the transport needs.
type Ledger interface {
	Apply(ctx context.Context, accountID string, amount decimal.Decimal, direction models.Direction, opts ...ledger.ApplyOption) (models.AccountSnapshot, error)
	GetBalance(ctx context.Context, accountID string) (models.Balance, error)
	History(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
}

type Server struct {
	ledger Ledger
	logger *zap.Logger
}

func NewServer(l Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ledger: l, logger: logger}
}

type operationRequest struct {
	OperationType string          `json:"operation_type"`
	Amount        json.RawMessage `json:"amount"`
}

type walletView struct {
	UUID      string     `json:"uuid"`
	Balance   string     `json:"balance"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type transactionView struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type operationResponse struct {
	Status      string          `json:"status"`
	Wallet      walletView      `json:"wallet"`
	Transaction transactionView `json:"transaction"`
	Replayed    bool            `json:"replayed,omitempty"`
}

type balanceResponse struct {
	Status string     `json:"status"`
	Wallet walletView `json:"wallet"`
}

type entriesResponse struct {
	Status  string            `json:"status"`
	Entries []transactionView `json:"entries"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// walletID returns the path id, or writes 404 when it is not a UUID.
func walletID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "wallet not found")
		return "", false
	}
	return id.String(), true
}

// operation handles POST /api/v1/wallets/{id}/operation.
func (s *Server) operation(w http.ResponseWriter, r *http.Request) {
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	var req operationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.OperationType) == "" {
		writeError(w, http.StatusBadRequest, "operation_type is required")
		return
	}
	direction, err := ledger.ParseDirection(req.OperationType)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	raw, err := amountText(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := ledger.ParseAmount(raw)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	var opts []ledger.ApplyOption
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		opts = append(opts, ledger.WithIdempotencyKey(key))
	}

	snap, err := s.ledger.Apply(r.Context(), id, amount, direction, opts...)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	updated := snap.UpdatedAt
	resp := operationResponse{
		Status: "success",
		Wallet: walletView{
			UUID:      snap.AccountID,
			Balance:   snap.Balance.StringFixed(ledger.Scale),
			UpdatedAt: &updated,
		},
		Transaction: entryView(*snap.Entry),
		Replayed:    snap.Replayed,
	}

	code := http.StatusCreated
	if snap.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

// balance handles GET /api/v1/wallets/{id}.
func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	bal, err := s.ledger.GetBalance(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Status: "success",
		Wallet: walletView{UUID: bal.AccountID, Balance: bal.Balance.StringFixed(ledger.Scale)},
	})
}

// entries handles GET /api/v1/wallets/{id}/entries.
func (s *Server) entries(w http.ResponseWriter, r *http.Request) {
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	list, err := s.ledger.History(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	views := make([]transactionView, 0, len(list))
	for _, e := range list {
		views = append(views, entryView(e))
	}
	writeJSON(w, http.StatusOK, entriesResponse{Status: "success", Entries: views})
}

func entryView(e models.LedgerEntry) transactionView {
	return transactionView{
		ID:        e.ID,
		Amount:    e.Amount.StringFixed(ledger.Scale),
		Type:      string(e.Direction),
		Timestamp: e.CreatedAt,
	}
}

// amountText accepts the amount as a JSON string or number.
func amountText(raw json.RawMessage) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", errAmountRequired
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errAmountMalformed
		}
		return s, nil
	}
	return text, nil
}
