package ledger

import (
	"fmt"
	"strings"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for amounts and balances.
const Scale = 2

// MaxAmount is the largest value a NUMERIC(12,2) column can hold. It bounds
// both single amounts and balances.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ParseAmount parses s as a positive decimal with at most two fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}

	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks the shape of a transaction amount. It does no I/O.
func ValidateAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero, got %s", ErrInvalidAmount, d.String())
	}
	if err := checkScale(d); err != nil {
		return err
	}
	if d.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount %s exceeds the maximum of %s", ErrInvalidAmount, d.String(), MaxAmount.String())
	}
	return nil
}

// ValidateOpeningBalance checks the balance an account is provisioned with.
func ValidateOpeningBalance(d decimal.Decimal) error {
	if d.Sign() < 0 {
		return fmt.Errorf("%w: opening balance must not be negative, got %s", ErrInvalidAmount, d.String())
	}
	if err := checkScale(d); err != nil {
		return err
	}
	if d.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: opening balance %s exceeds the maximum of %s", ErrInvalidAmount, d.String(), MaxAmount.String())
	}
	return nil
}

// checkScale rejects more than Scale written fractional digits, so "1.000" fails
// even though its value fits.
func checkScale(d decimal.Decimal) error {
	if d.Exponent() < -Scale {
		return fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), Scale)
	}
	return nil
}

// ParseDirection maps a case-insensitive direction name onto a models.Direction.
func ParseDirection(s string) (models.Direction, error) {
	d := models.Direction(s).Normalize()
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q, expected %q or %q", ErrInvalidDirection, s, models.Deposit, models.Withdraw)
	}
	return d, nil
}

// CheckSufficientFunds rejects a withdrawal larger than balance. Deposits always pass.
//
// balance must be the value read while the account is exclusively held; a
// balance read any earlier may be stale by the time the entry is written.
func CheckSufficientFunds(accountID string, direction models.Direction, amount, balance decimal.Decimal) error {
	switch direction {
	case models.Deposit:
		return nil
	case models.Withdraw:
		if amount.GreaterThan(balance) {
			return &InsufficientFundsError{AccountID: accountID, Amount: amount, Balance: balance}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
}
