package ledger

import "sync/atomic"

// Account is the capability contract shared by all account variants.
//
// Implementations are safe for arbitrary concurrent use. Transfer and
// Credit return an error only for precondition violations or a fatal
// retries-exhausted condition; an underfunded transfer on a
// deferral-capable account is normal flow and returns nil.
type Account interface {
	// Balance returns the current primary balance. Always a fresh
	// atomic read, never a torn value.
	Balance() int64

	// Transfer moves amount from this account to payee using the
	// debit-then-credit protocol. amount must be positive.
	Transfer(payee Account, amount int64) error

	// Credit adds amount to this account's balance. amount must be
	// positive.
	Credit(amount int64) error
}

// outcome tags the result of a single transfer attempt.
type outcome int

const (
	// outcomeSuccess means funds moved and the payee was credited.
	outcomeSuccess outcome = iota + 1
	// outcomeDeferred means the obligation was queued (or stays queued)
	// and no funds moved.
	outcomeDeferred
	// outcomeRetry means a CAS race was lost and the attempt must be
	// re-run from fresh reads.
	outcomeRetry
)

// CashAccount is the unconstrained baseline variant. Its balance may go
// negative without bound, so both debit and credit are unconditional
// atomic adds and no retry loop is needed.
type CashAccount struct {
	balance atomic.Int64
}

// NewCashAccount creates a cash account holding initial.
func NewCashAccount(initial int64) *CashAccount {
	a := &CashAccount{}
	a.balance.Store(initial)
	return a
}

// Balance returns the current balance.
func (a *CashAccount) Balance() int64 {
	return a.balance.Load()
}

// Transfer debits this account unconditionally, then credits payee.
// The debit lands before the credit: the conserved total dips by amount
// only for the instant between the two atomic steps.
func (a *CashAccount) Transfer(payee Account, amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	a.balance.Add(-amount)
	return payee.Credit(amount)
}

// Credit adds amount to the balance.
func (a *CashAccount) Credit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	a.balance.Add(amount)
	return nil
}
