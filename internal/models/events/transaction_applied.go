package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionApplied is published once a ledger entry and its balance update have committed.
type TransactionApplied struct {
	EntryID    string          `json:"entry_id"`
	AccountID  string          `json:"account_id"`
	Direction  string          `json:"direction"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}
