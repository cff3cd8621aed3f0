package interfaces

import (
	"context"
	"time"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// UnitOfWork is one atomic unit. It is bound to the account locked by
// LedgerStore.WithLockedAccount and is only valid inside that callback. Reads
// made through it use the unit's own connection.
type UnitOfWork interface {
	// FindEntryByKey looks up a committed entry of the locked account by idempotency key.
	FindEntryByKey(ctx context.Context, key string) (models.LedgerEntry, bool, error)
	// Entries lists the locked account's entries, including ones appended in this unit.
	Entries(ctx context.Context) ([]models.LedgerEntry, error)
	AppendEntry(ctx context.Context, entry models.LedgerEntry) error
	SaveBalance(ctx context.Context, balance decimal.Decimal, updatedAt time.Time) error
}

// LedgerStore persists accounts and their append-only ledgers.
//
// WithLockedAccount is the only serialization point: it opens an atomic unit,
// acquires exclusive access to the account, and passes the authoritative state
// to fn. The unit commits when fn returns nil and rolls back otherwise. Any lock
// held is released before WithLockedAccount returns, including when ctx is done.
//
// Implementations report a missing account with storage.ErrAccountNotFound and
// wrap recoverable contention (lock timeouts, serialization failures) with
// storage.ErrConflict.
type LedgerStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
	WithLockedAccount(ctx context.Context, accountID string, fn func(account models.Account, uow UnitOfWork) error) error
	Close() error
}
