package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1000", want: "1000.00"},
		{in: "0.10", want: "0.10"},
		{in: " 12.5 ", want: "12.50"},
		{in: "1.50", want: "1.50"},
		{in: "1.000", wantErr: true},
		{in: "5.0000000", wantErr: true},
		{in: "9999999999.99", want: "9999999999.99"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "0", wantErr: true},
		{in: "0.00", wantErr: true},
		{in: "-100.00", wantErr: true},
		{in: "0.001", wantErr: true},
		{in: "10000000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(Scale))
		})
	}
}

func TestValidateOpeningBalance(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateOpeningBalance(dec("0")))
	assert.NoError(t, ValidateOpeningBalance(dec("1000.00")))
	assert.ErrorIs(t, ValidateOpeningBalance(dec("-0.01")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateOpeningBalance(dec("0.001")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateOpeningBalance(dec("10.000")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateOpeningBalance(dec("10000000000")), ErrInvalidAmount)
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    models.Direction
		wantErr bool
	}{
		{in: "deposit", want: models.Deposit},
		{in: "DEPOSIT", want: models.Deposit},
		{in: "Withdraw", want: models.Withdraw},
		{in: " withdraw ", want: models.Withdraw},
		{in: "transfer", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDirection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckSufficientFunds(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckSufficientFunds("a", models.Deposit, dec("5000"), dec("0")))
	assert.NoError(t, CheckSufficientFunds("a", models.Withdraw, dec("10.00"), dec("10.00")))
	assert.NoError(t, CheckSufficientFunds("a", models.Withdraw, dec("9.99"), dec("10.00")))

	err := CheckSufficientFunds("a", models.Withdraw, dec("10.01"), dec("10.00"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	var insufficient *InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "insufficient funds: withdrawal of 10.01 exceeds balance 10.00", err.Error())

	assert.ErrorIs(t, CheckSufficientFunds("a", models.Direction("x"), dec("1"), dec("1")), ErrInvalidDirection)
}

func TestIsBusinessError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBusinessError(ErrAccountNotFound))
	assert.True(t, IsBusinessError(&InsufficientFundsError{}))
	assert.True(t, IsBusinessError(ErrInvalidAmount))
	assert.True(t, IsBusinessError(ErrInvalidDirection))
	assert.True(t, IsBusinessError(fmt.Errorf("%w: key", ErrIdempotencyKeyReused)))
	assert.False(t, IsBusinessError(ErrOperationFailed))
	assert.False(t, IsBusinessError(errors.New("io")))
}
