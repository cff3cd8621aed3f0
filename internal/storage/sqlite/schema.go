package sqlite

// Amounts are TEXT so SQLite's numeric affinity never turns them into floats.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	balance TEXT NOT NULL,
	opening_balance TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts (id),
	direction TEXT NOT NULL CHECK (direction IN ('deposit', 'withdraw')),
	amount TEXT NOT NULL,
	idempotency_key TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created ON ledger_entries (account_id, created_at, id);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_account_key
	ON ledger_entries (account_id, idempotency_key)
	WHERE idempotency_key IS NOT NULL;
`
