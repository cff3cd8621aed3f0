package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction adds money to or removes money from an account.
type Direction string

const (
	Deposit  Direction = "deposit"
	Withdraw Direction = "withdraw"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case Deposit, Withdraw:
		return true
	}
	return false
}

// Normalize lowercases and trims d so "DEPOSIT" and " deposit" compare equal to Deposit.
func (d Direction) Normalize() Direction {
	return Direction(strings.ToLower(strings.TrimSpace(string(d))))
}

// Signed returns amount with the sign this direction applies to a balance.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == Withdraw {
		return amount.Neg()
	}
	return amount
}

// Transaction represents an intent to move money in or out of one account
type Transaction struct {
	AccountID      string
	Amount         decimal.Decimal
	Direction      Direction
	IdempotencyKey string // optional; empty means every submission appends a new entry
}
