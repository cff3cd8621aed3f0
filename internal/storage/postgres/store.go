package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var Schema string

// SQLSTATE codes that mean the unit was aborted by contention and can be re-run.
var transientCodes = map[pq.ErrorCode]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available (lock_timeout)
	"57014": {}, // query_canceled (statement_timeout)
}

const invalidTextRepresentation pq.ErrorCode = "22P02"

type PostgresLedgerStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

type Option func(*PostgresLedgerStore)

// WithLockTimeout sets lock_timeout for every atomic unit. Zero keeps the server default.
func WithLockTimeout(d time.Duration) Option {
	return func(p *PostgresLedgerStore) { p.lockTimeout = d }
}

func NewPostgresLedgerStore(db *sql.DB, opts ...Option) *PostgresLedgerStore {
	p := &PostgresLedgerStore{
		db: db,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open connects to dsn with the lib/pq driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, balance, opening_balance, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.Balance, account.OpeningBalance, account.CreatedAt, account.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", storage.ErrAccountExists, account.ID)
	}
	return classify(err)
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	const query = `SELECT id, balance, opening_balance, created_at, updated_at FROM accounts WHERE id = $1`

	return scanAccount(p.db.QueryRowContext(ctx, query, accountID))
}

func (p *PostgresLedgerStore) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	return listEntries(ctx, p.db, accountID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// listEntries runs on either the pool or the open transaction of a unit.
func listEntries(ctx context.Context, q querier, accountID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, account_id, direction, amount, idempotency_key, created_at FROM ledger_entries
	WHERE account_id = $1
	ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, classify(err)
	}

	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			entry models.LedgerEntry
			key   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Direction, &entry.Amount, &key, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.IdempotencyKey = key.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

// WithLockedAccount implements interfaces.LedgerStore with SELECT ... FOR UPDATE
// on the account row inside one database transaction.
func (p *PostgresLedgerStore) WithLockedAccount(ctx context.Context, accountID string, fn func(models.Account, interfaces.UnitOfWork) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if p.lockTimeout > 0 {
		if _, err = dbTx.ExecContext(ctx, lockTimeoutStmt(p.lockTimeout)); err != nil {
			return classify(err)
		}
	}

	const query = `SELECT id, balance, opening_balance, created_at, updated_at FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(dbTx.QueryRowContext(ctx, query, accountID))
	if err != nil {
		return err
	}

	if err = fn(account, &unitOfWork{tx: dbTx, accountID: account.ID}); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// lockTimeoutStmt rounds d up to whole milliseconds; '0ms' would disable the timeout.
// SET does not take bind parameters.
func lockTimeoutStmt(d time.Duration) string {
	ms := (d + time.Millisecond - 1) / time.Millisecond
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

type unitOfWork struct {
	tx        *sql.Tx
	accountID string
}

func (u *unitOfWork) FindEntryByKey(ctx context.Context, key string) (models.LedgerEntry, bool, error) {
	const query = `SELECT id, account_id, direction, amount, created_at FROM ledger_entries
	WHERE account_id = $1 AND idempotency_key = $2`

	entry := models.LedgerEntry{IdempotencyKey: key}
	err := u.tx.QueryRowContext(ctx, query, u.accountID, key).
		Scan(&entry.ID, &entry.AccountID, &entry.Direction, &entry.Amount, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return models.LedgerEntry{}, false, nil
	}
	if err != nil {
		return models.LedgerEntry{}, false, classify(err)
	}
	return entry, true, nil
}

func (u *unitOfWork) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	return listEntries(ctx, u.tx, u.accountID)
}

func (u *unitOfWork) AppendEntry(ctx context.Context, entry models.LedgerEntry) error {
	if entry.AccountID != u.accountID {
		return fmt.Errorf("entry for account %s appended under lock of %s", entry.AccountID, u.accountID)
	}

	const query = `INSERT INTO ledger_entries (id, account_id, direction, amount, idempotency_key, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	key := sql.NullString{String: entry.IdempotencyKey, Valid: entry.IdempotencyKey != ""}
	_, err := u.tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, string(entry.Direction), entry.Amount, key, entry.CreatedAt)
	return classify(err)
}

func (u *unitOfWork) SaveBalance(ctx context.Context, balance decimal.Decimal, updatedAt time.Time) error {
	const query = `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`

	_, err := u.tx.ExecContext(ctx, query, u.accountID, balance, updatedAt)
	return classify(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var account models.Account
	err := row.Scan(&account.ID, &account.Balance, &account.OpeningBalance, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Account{}, storage.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, classify(err)
	}
	return account, nil
}

// classify maps driver errors onto the storage error vocabulary. Errors it
// does not recognise are returned unchanged and treated as fatal upstream.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	if _, ok := transientCodes[pqErr.Code]; ok {
		return storage.Conflict(err)
	}
	// a malformed uuid cannot name an existing account
	if pqErr.Code == invalidTextRepresentation {
		return fmt.Errorf("%w: %w", storage.ErrAccountNotFound, err)
	}
	return err
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
