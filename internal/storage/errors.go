// Package storage holds the error vocabulary shared by every LedgerStore
// implementation. Concrete stores live in the memory, postgres and sqlite
// subpackages.
package storage

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// ErrConflict marks a recoverable contention failure: the atomic unit was
	// aborted and may be retried from the start.
	ErrConflict = errors.New("transient write conflict")
)

// Conflict wraps err so that errors.Is(result, ErrConflict) holds while the
// driver error stays reachable through errors.As.
func Conflict(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

// IsConflict reports whether err is a transient conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
