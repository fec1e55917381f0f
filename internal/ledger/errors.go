package ledger

import "errors"

var (
	// ErrNonPositiveAmount rejects transfers and credits of zero or
	// negative amounts. Precondition violations are synchronous and are
	// never retried or queued.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrPositiveOverdraftLimit rejects construction of an overdraft
	// account with a limit above zero. The limit is the floor the
	// overdraft balance may sink to, so it must be non-positive.
	ErrPositiveOverdraftLimit = errors.New("overdraft limit must be non-positive")

	// ErrBelowOverdraftLimit rejects construction of an overdraft
	// account whose initial balance is already under its limit.
	ErrBelowOverdraftLimit = errors.New("overdraft balance must not start below its limit")
)
