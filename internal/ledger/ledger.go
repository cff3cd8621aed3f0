package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/wallet-ledger/internal/id"
	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/models/events"
	"github.com/sheikh-saqib/wallet-ledger/internal/retry"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Ledger coordinates every balance mutation.
//
// Concurrent writers on one account are serialized by the store's exclusive
// account lock; the ledger itself holds no in-process locks, so writers on
// different accounts proceed in parallel.
type Ledger struct {
	store          interfaces.LedgerStore
	publisher      interfaces.EventPublisher
	logger         *zap.Logger
	policy         retry.Policy
	attemptTimeout time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets where TransactionApplied events go after commit.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publisher = p
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRetryPolicy replaces retry.DefaultPolicy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithAttemptTimeout bounds each atomic unit, lock wait included. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.attemptTimeout = d }
}

// WithClock overrides time.Now for entry and balance timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates a Ledger on top of store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:          store,
		publisher:      interfaces.NopPublisher{},
		logger:         zap.NewNop(),
		policy:         retry.DefaultPolicy(),
		attemptTimeout: 5 * time.Second,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ApplyOption adjusts a single Apply call.
type ApplyOption func(*models.Transaction)

// WithIdempotencyKey makes Apply return the earlier result instead of appending
// a second entry when the key was already committed on the account.
func WithIdempotencyKey(key string) ApplyOption {
	return func(tx *models.Transaction) { tx.IdempotencyKey = key }
}

// Apply deposits or withdraws amount on the account and returns its new state.
func (l *Ledger) Apply(ctx context.Context, accountID string, amount decimal.Decimal, direction models.Direction, opts ...ApplyOption) (models.AccountSnapshot, error) {
	tx := models.Transaction{
		AccountID: accountID,
		Amount:    amount,
		Direction: direction,
	}
	for _, opt := range opts {
		opt(&tx)
	}
	return l.PostTransaction(ctx, tx)
}

// PostTransaction turns a transaction intent into one committed ledger entry
// and the matching balance change.
//
// Validation of the amount and direction happens before any I/O. Sufficiency
// of funds is checked only against the balance read under the account lock.
// Transient store conflicts are retried per the retry policy; once the budget
// is spent the call fails with ErrOperationFailed.
func (l *Ledger) PostTransaction(ctx context.Context, tx models.Transaction) (models.AccountSnapshot, error) {
	direction, err := ParseDirection(string(tx.Direction))
	if err != nil {
		return models.AccountSnapshot{}, err
	}
	tx.Direction = direction

	if err := ValidateAmount(tx.Amount); err != nil {
		return models.AccountSnapshot{}, err
	}
	tx.Amount = tx.Amount.Round(Scale)

	log := l.logger.With(
		zap.String("account_id", tx.AccountID),
		zap.String("direction", string(tx.Direction)),
		zap.String("amount", tx.Amount.StringFixed(Scale)),
	)

	var snap models.AccountSnapshot
	err = retry.Do(ctx, l.policy, storage.IsConflict,
		func(attempt int, delay time.Duration, err error) {
			log.Warn("transient conflict, retrying transaction",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
		func(ctx context.Context, _ int) error {
			s, err := l.attempt(ctx, tx)
			if err != nil {
				return err
			}
			snap = s
			return nil
		})

	switch {
	case err == nil:
	case errors.Is(err, retry.ErrExhausted):
		log.Error("transaction retry budget exhausted", zap.Error(err))
		return models.AccountSnapshot{}, fmt.Errorf("%w: gave up after %d attempts", ErrOperationFailed, l.policy.MaxAttempts)
	case errors.Is(err, storage.ErrAccountNotFound):
		return models.AccountSnapshot{}, fmt.Errorf("%w: %s", ErrAccountNotFound, tx.AccountID)
	case IsBusinessError(err):
		log.Debug("transaction rejected", zap.Error(err))
		return models.AccountSnapshot{}, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.AccountSnapshot{}, err
	default:
		log.Error("transaction failed", zap.Error(err))
		return models.AccountSnapshot{}, fmt.Errorf("apply transaction: %w", err)
	}

	if snap.Replayed {
		log.Debug("idempotent replay", zap.String("idempotency_key", tx.IdempotencyKey))
		return snap, nil
	}

	log.Debug("transaction committed",
		zap.String("entry_id", snap.Entry.ID),
		zap.String("balance", snap.Balance.StringFixed(Scale)))
	l.publish(ctx, snap)

	return snap, nil
}

// attempt runs one atomic unit: lock, re-read, validate, append, write balance.
func (l *Ledger) attempt(ctx context.Context, tx models.Transaction) (models.AccountSnapshot, error) {
	unitCtx := ctx
	if l.attemptTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, l.attemptTimeout)
		defer cancel()
	}

	var snap models.AccountSnapshot
	err := l.store.WithLockedAccount(unitCtx, tx.AccountID, func(account models.Account, uow interfaces.UnitOfWork) error {
		if tx.IdempotencyKey != "" {
			prev, found, err := uow.FindEntryByKey(unitCtx, tx.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				if prev.Direction != tx.Direction || !prev.Amount.Equal(tx.Amount) {
					return fmt.Errorf("%w: key %q already applied %s %s",
						ErrIdempotencyKeyReused, tx.IdempotencyKey, prev.Direction, prev.Amount.StringFixed(Scale))
				}
				snap = account.Snapshot()
				snap.Entry = &prev
				snap.Replayed = true
				return nil
			}
		}

		if err := CheckSufficientFunds(account.ID, tx.Direction, tx.Amount, account.Balance); err != nil {
			return err
		}

		balance := account.Balance.Add(tx.Direction.Signed(tx.Amount))
		if balance.GreaterThan(MaxAmount) {
			return fmt.Errorf("%w: balance would exceed the maximum of %s", ErrInvalidAmount, MaxAmount.String())
		}

		now := l.timestamp()
		entry := models.LedgerEntry{
			ID:             id.NewAt(now),
			AccountID:      account.ID,
			Direction:      tx.Direction,
			Amount:         tx.Amount,
			IdempotencyKey: tx.IdempotencyKey,
			CreatedAt:      now,
		}

		if err := uow.AppendEntry(unitCtx, entry); err != nil {
			return err
		}
		if err := uow.SaveBalance(unitCtx, balance, now); err != nil {
			return err
		}

		account.Balance = balance
		account.UpdatedAt = now
		snap = account.Snapshot()
		snap.Entry = &entry
		return nil
	})

	// The unit's own deadline expiring while the caller is still waiting is
	// contention, not cancellation.
	if err != nil && unitCtx.Err() != nil && ctx.Err() == nil && !storage.IsConflict(err) {
		err = storage.Conflict(err)
	}
	if err != nil {
		return models.AccountSnapshot{}, err
	}
	return snap, nil
}

func (l *Ledger) publish(ctx context.Context, snap models.AccountSnapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.publishTimeout)
	defer cancel()

	event := events.TransactionApplied{
		EntryID:    snap.Entry.ID,
		AccountID:  snap.AccountID,
		Direction:  string(snap.Entry.Direction),
		Amount:     snap.Entry.Amount,
		Balance:    snap.Balance,
		OccurredAt: snap.Entry.CreatedAt,
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Warn("failed to publish transaction event",
			zap.String("account_id", snap.AccountID),
			zap.String("entry_id", snap.Entry.ID),
			zap.Error(err))
	}
}

// GetBalance returns the committed balance of an account. It takes no lock.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (models.Balance, error) {
	account, err := l.getAccount(ctx, accountID)
	if err != nil {
		return models.Balance{}, err
	}
	return models.Balance{AccountID: account.ID, Balance: account.Balance}, nil
}

// OpenAccount provisions a new account with the given opening balance.
func (l *Ledger) OpenAccount(ctx context.Context, openingBalance decimal.Decimal) (models.Account, error) {
	if err := ValidateOpeningBalance(openingBalance); err != nil {
		return models.Account{}, err
	}

	now := l.timestamp()
	account := models.Account{
		ID:             uuid.NewString(),
		Balance:        openingBalance.Round(Scale),
		OpeningBalance: openingBalance.Round(Scale),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.store.CreateAccount(ctx, account); err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}

	l.logger.Info("account opened",
		zap.String("account_id", account.ID),
		zap.String("opening_balance", account.OpeningBalance.StringFixed(Scale)))
	return account, nil
}

// History returns the account's ledger entries ordered by creation time, then id.
func (l *Ledger) History(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	if _, err := l.getAccount(ctx, accountID); err != nil {
		return nil, err
	}

	entries, err := l.store.GetEntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	slices.SortStableFunc(entries, func(a, b models.LedgerEntry) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return entries, nil
}

// Verification is the outcome of re-deriving a balance from the ledger.
type Verification struct {
	AccountID string
	Cached    decimal.Decimal
	Derived   decimal.Decimal
	Entries   int
}

// Verify recomputes the balance from the opening balance and every ledger
// entry and compares it with the cached balance. Entries are read inside the
// locked unit so no writer can commit in between.
func (l *Ledger) Verify(ctx context.Context, accountID string) (Verification, error) {
	var v Verification
	err := l.store.WithLockedAccount(ctx, accountID, func(account models.Account, uow interfaces.UnitOfWork) error {
		entries, err := uow.Entries(ctx)
		if err != nil {
			return err
		}

		derived := account.OpeningBalance
		for _, e := range entries {
			derived = derived.Add(e.Signed())
		}

		v = Verification{
			AccountID: account.ID,
			Cached:    account.Balance,
			Derived:   derived,
			Entries:   len(entries),
		}
		return nil
	})
	if errors.Is(err, storage.ErrAccountNotFound) {
		return Verification{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return Verification{}, fmt.Errorf("verify account: %w", err)
	}

	if !v.Cached.Equal(v.Derived) {
		l.logger.Error("balance does not match ledger",
			zap.String("account_id", accountID),
			zap.String("cached", v.Cached.StringFixed(Scale)),
			zap.String("derived", v.Derived.StringFixed(Scale)))
		return v, fmt.Errorf("%w: account %s cached %s, ledger %s",
			ErrBalanceMismatch, accountID, v.Cached.StringFixed(Scale), v.Derived.StringFixed(Scale))
	}
	return v, nil
}

// timestamp is truncated to the microsecond precision every store can keep.
func (l *Ledger) timestamp() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

func (l *Ledger) getAccount(ctx context.Context, accountID string) (models.Account, error) {
	account, err := l.store.GetAccount(ctx, accountID)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}
