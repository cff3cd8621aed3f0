package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry represents a single immutable ledger record for an account
type LedgerEntry struct {
	ID             string          // ULID, sortable by creation time
	AccountID      string          // owning account, never reassigned
	Direction      Direction       // deposit or withdraw
	Amount         decimal.Decimal // always positive, scale 2
	IdempotencyKey string          // empty when the caller did not supply one
	CreatedAt      time.Time       // timestamp
}

// Signed returns the entry's contribution to the account balance.
func (e LedgerEntry) Signed() decimal.Decimal {
	return e.Direction.Signed(e.Amount)
}

// Less orders entries by CreatedAt, then ID.
func (e LedgerEntry) Less(other LedgerEntry) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}
