// Package sqlite is an embedded LedgerStore for single-node deployments.
//
// SQLite has no row locks: every atomic unit starts with BEGIN IMMEDIATE, which
// takes the database-wide write lock. Writers on different accounts therefore
// queue behind each other, while readers keep going thanks to WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mattn/go-sqlite3"
	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

type SQLiteLedgerStore struct {
	db *sql.DB
}

// DSN builds a go-sqlite3 connection string for path. busyTimeout is how long
// a writer waits for the write lock before SQLite reports SQLITE_BUSY.
func DSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database described by dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*SQLiteLedgerStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteLedgerStore{db: db}, nil
}

func (s *SQLiteLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, opening_balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Balance.StringFixed(2), account.OpeningBalance.StringFixed(2), account.CreatedAt.UTC(), account.UpdatedAt.UTC(),
	)

	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return fmt.Errorf("%w: %s", storage.ErrAccountExists, account.ID)
	}
	return classify(err)
}

func (s *SQLiteLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, balance, opening_balance, created_at, updated_at FROM accounts WHERE id = ?`, accountID))
}

func (s *SQLiteLedgerStore) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	return listEntries(ctx, s.db, accountID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listEntries(ctx context.Context, q querier, accountID string) ([]models.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, direction, amount, idempotency_key, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var (
			e   models.LedgerEntry
			key sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &key, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.IdempotencyKey = key.String
		out = append(out, e)
	}
	return out, classify(rows.Err())
}

func (s *SQLiteLedgerStore) WithLockedAccount(ctx context.Context, accountID string, fn func(models.Account, interfaces.UnitOfWork) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	account, err := scanAccount(tx.QueryRowContext(ctx, `
		SELECT id, balance, opening_balance, created_at, updated_at FROM accounts WHERE id = ?`, accountID))
	if err != nil {
		return err
	}

	if err = fn(account, &unitOfWork{tx: tx, accountID: account.ID}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (s *SQLiteLedgerStore) Close() error {
	return s.db.Close()
}

type unitOfWork struct {
	tx        *sql.Tx
	accountID string
}

func (u *unitOfWork) FindEntryByKey(ctx context.Context, key string) (models.LedgerEntry, bool, error) {
	e := models.LedgerEntry{IdempotencyKey: key}
	err := u.tx.QueryRowContext(ctx, `
		SELECT id, account_id, direction, amount, created_at FROM ledger_entries
		WHERE account_id = ? AND idempotency_key = ?`, u.accountID, key).
		Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, false, nil
	}
	if err != nil {
		return models.LedgerEntry{}, false, classify(err)
	}
	return e, true, nil
}

func (u *unitOfWork) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	return listEntries(ctx, u.tx, u.accountID)
}

func (u *unitOfWork) AppendEntry(ctx context.Context, e models.LedgerEntry) error {
	if e.AccountID != u.accountID {
		return fmt.Errorf("entry for account %s appended under lock of %s", e.AccountID, u.accountID)
	}

	key := sql.NullString{String: e.IdempotencyKey, Valid: e.IdempotencyKey != ""}
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, direction, amount, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, string(e.Direction), e.Amount.StringFixed(2), key, e.CreatedAt.UTC(),
	)
	return classify(err)
}

func (u *unitOfWork) SaveBalance(ctx context.Context, balance decimal.Decimal, updatedAt time.Time) error {
	_, err := u.tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.StringFixed(2), updatedAt.UTC(), u.accountID)
	return classify(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Balance, &a.OpeningBalance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, storage.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, classify(err)
	}
	return a, nil
}

// classify wraps SQLITE_BUSY and SQLITE_LOCKED as storage conflicts.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return storage.Conflict(err)
	}
	return err
}

var _ interfaces.LedgerStore = (*SQLiteLedgerStore)(nil)
