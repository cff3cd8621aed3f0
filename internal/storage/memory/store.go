package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
//
// Each account has its own lock, a one-slot channel, so that waiting for it can
// be abandoned when the context is done. mu guards the maps; it is only held
// for short copies and never while waiting for an account lock.
type MemoryLedgerStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	entries  map[string][]models.LedgerEntry
	keys     map[string]map[string]models.LedgerEntry // account id -> idempotency key -> entry

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts: make(map[string]models.Account),
		entries:  make(map[string][]models.LedgerEntry),
		keys:     make(map[string]map[string]models.LedgerEntry),
		locks:    make(map[string]chan struct{}),
	}
}

func (m *MemoryLedgerStore) accountLock(accountID string) chan struct{} {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	if _, exists := m.locks[accountID]; !exists {
		m.locks[accountID] = make(chan struct{}, 1)
	}
	return m.locks[accountID]
}

func (m *MemoryLedgerStore) CreateAccount(_ context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return fmt.Errorf("%w: %s", storage.ErrAccountExists, account.ID)
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *MemoryLedgerStore) GetAccount(_ context.Context, accountID string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}
	return account, nil
}

// GetEntriesByAccount returns a copy of the account's entries in append order.
func (m *MemoryLedgerStore) GetEntriesByAccount(_ context.Context, accountID string) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make([]models.LedgerEntry, len(m.entries[accountID]))
	copy(copied, m.entries[accountID])
	return copied, nil
}

// WithLockedAccount implements interfaces.LedgerStore. Writes made through the
// unit of work are staged and become visible together when fn returns nil.
func (m *MemoryLedgerStore) WithLockedAccount(ctx context.Context, accountID string, fn func(models.Account, interfaces.UnitOfWork) error) error {
	if _, err := m.GetAccount(ctx, accountID); err != nil {
		return err
	}

	lock := m.accountLock(accountID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return storage.Conflict(fmt.Errorf("waiting for account lock: %w", ctx.Err()))
	}
	defer func() { <-lock }()

	account, err := m.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	uow := &unitOfWork{store: m, account: account}
	if err := fn(account, uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.commit(uow)
	return nil
}

func (m *MemoryLedgerStore) commit(uow *unitOfWork) {
	if len(uow.entries) == 0 && !uow.dirty {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uow.account.ID
	for _, e := range uow.entries {
		m.entries[id] = append(m.entries[id], e)
		if e.IdempotencyKey != "" {
			if m.keys[id] == nil {
				m.keys[id] = make(map[string]models.LedgerEntry)
			}
			m.keys[id][e.IdempotencyKey] = e
		}
	}
	if uow.dirty {
		account := m.accounts[id]
		account.Balance = uow.balance
		account.UpdatedAt = uow.updatedAt
		m.accounts[id] = account
	}
}

func (m *MemoryLedgerStore) Close() error { return nil }

type unitOfWork struct {
	store   *MemoryLedgerStore
	account models.Account

	entries   []models.LedgerEntry
	dirty     bool
	balance   decimal.Decimal
	updatedAt time.Time
}

func (u *unitOfWork) FindEntryByKey(_ context.Context, key string) (models.LedgerEntry, bool, error) {
	for _, e := range u.entries {
		if e.IdempotencyKey == key {
			return e, true, nil
		}
	}

	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	e, ok := u.store.keys[u.account.ID][key]
	return e, ok, nil
}

func (u *unitOfWork) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	committed, err := u.store.GetEntriesByAccount(ctx, u.account.ID)
	if err != nil {
		return nil, err
	}
	return append(committed, u.entries...), nil
}

func (u *unitOfWork) AppendEntry(_ context.Context, entry models.LedgerEntry) error {
	if entry.AccountID != u.account.ID {
		return fmt.Errorf("entry for account %s appended under lock of %s", entry.AccountID, u.account.ID)
	}
	u.entries = append(u.entries, entry)
	return nil
}

func (u *unitOfWork) SaveBalance(_ context.Context, balance decimal.Decimal, updatedAt time.Time) error {
	u.dirty = true
	u.balance = balance
	u.updatedAt = updatedAt
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
