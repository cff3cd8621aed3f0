package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the cached running balance of one wallet.
//
// Balance always equals OpeningBalance plus the signed sum of the account's
// committed ledger entries. OpeningBalance is fixed at provisioning time.
type Account struct {
	ID             string
	Balance        decimal.Decimal
	OpeningBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot returns the externally visible state of the account.
func (a Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		AccountID: a.ID,
		Balance:   a.Balance,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountSnapshot is the result of a successful Apply.
type AccountSnapshot struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
	Entry     *LedgerEntry    `json:"-"`        // entry appended by this call; on replay, the original entry
	Replayed  bool            `json:"replayed"` // true when an idempotency key matched an earlier entry
}

// Balance is the read-side view returned by balance queries.
type Balance struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}
