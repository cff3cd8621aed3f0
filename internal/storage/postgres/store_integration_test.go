//go:build integration

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationLedger(t *testing.T) (*ledger.Ledger, *PostgresLedgerStore) {
	t.Helper()

	dsn := os.Getenv("WALLET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WALLET_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)

	store := NewPostgresLedgerStore(db, WithLockTimeout(2*time.Second))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	policy := retry.DefaultPolicy()
	policy.BaseDelay = 5 * time.Millisecond
	policy.MaxDelay = 50 * time.Millisecond
	policy.Jitter = 10 * time.Millisecond

	return ledger.NewLedger(store, ledger.WithRetryPolicy(policy)), store
}

func TestPostgresConcurrentDeposits(t *testing.T) {
	l, _ := newIntegrationLedger(t)
	ctx := context.Background()

	acct, err := l.OpenAccount(ctx, decimal.RequireFromString("1000.00"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Apply(ctx, acct.ID, decimal.NewFromInt(300), models.Deposit)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	bal, err := l.GetBalance(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "4000.00", bal.Balance.StringFixed(2))

	entries, err := l.History(ctx, acct.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	_, err = l.Verify(ctx, acct.ID)
	assert.NoError(t, err)
}

func TestPostgresWithdrawNeverOverdraws(t *testing.T) {
	l, _ := newIntegrationLedger(t)
	ctx := context.Background()

	acct, err := l.OpenAccount(ctx, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Apply(ctx, acct.ID, decimal.RequireFromString("30.00"), models.Withdraw)
		}()
	}
	wg.Wait()

	bal, err := l.GetBalance(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", bal.Balance.StringFixed(2))
}

func TestPostgresUnknownAndMalformedAccount(t *testing.T) {
	l, _ := newIntegrationLedger(t)
	ctx := context.Background()

	_, err := l.GetBalance(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = l.Apply(ctx, "not-a-uuid", decimal.NewFromInt(1), models.Deposit)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
