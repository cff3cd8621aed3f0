package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Business errors are terminal: the coordinator never retries them and callers
// may show their messages verbatim.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrIdempotencyKeyReused means the key already committed a different
	// direction or amount on the account.
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request")
)

var (
	// ErrOperationFailed means every attempt hit a transient conflict. The
	// request did not commit and can be resubmitted.
	ErrOperationFailed = errors.New("operation failed, please retry")

	// ErrBalanceMismatch means the cached balance disagrees with the ledger.
	ErrBalanceMismatch = errors.New("balance does not match ledger")
)

// InsufficientFundsError carries the figures that explain a rejected withdrawal.
type InsufficientFundsError struct {
	AccountID string
	Amount    decimal.Decimal
	Balance   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: withdrawal of %s exceeds balance %s",
		e.Amount.StringFixed(Scale), e.Balance.StringFixed(Scale))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// IsBusinessError reports whether err is a terminal business-rule rejection.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrIdempotencyKeyReused)
}
