package ledger

import (
	"sync/atomic"

	"github.com/casbank/casbank/internal/retry"
)

// OverdraftAccount is a secondary balance allowed to sink to a fixed
// non-positive limit. It backs an OverdraftBankAccount as a fallback
// funding source; it is never transferred from directly.
type OverdraftAccount struct {
	limit   int64 // non-positive, fixed at construction
	balance atomic.Int64
}

// NewOverdraftAccount creates an overdraft account with the given limit
// and initial balance. limit must be non-positive and initial must not
// start below it.
func NewOverdraftAccount(limit, initial int64) (*OverdraftAccount, error) {
	if limit > 0 {
		return nil, ErrPositiveOverdraftLimit
	}
	if initial < limit {
		return nil, ErrBelowOverdraftLimit
	}
	od := &OverdraftAccount{limit: limit}
	od.balance.Store(initial)
	return od, nil
}

// Balance returns the current overdraft balance.
func (od *OverdraftAccount) Balance() int64 {
	return od.balance.Load()
}

// Limit returns the fixed floor of this overdraft account.
func (od *OverdraftAccount) Limit() int64 {
	return od.limit
}

// OverdraftBankAccount extends BankAccount with an overdraft balance.
//
// The primary and overdraft balances are independent atomics; they are
// never mutated as one joint atomic operation. Debits that span both use
// the tentative-commit-or-rollback protocol in drawFromOverdraft, and
// credits fill a negative overdraft toward zero before the remainder
// lands on the primary balance.
type OverdraftBankAccount struct {
	BankAccount
	overdraft *OverdraftAccount
}

// NewOverdraftBankAccount creates a deferral-capable account backed by
// od. initial must be non-negative.
func NewOverdraftBankAccount(initial int64, od *OverdraftAccount) *OverdraftBankAccount {
	o := &OverdraftBankAccount{overdraft: od}
	o.balance.Store(initial)
	o.attempts = retry.DefaultAttempts
	o.onShortfall = o.drawFromOverdraft
	return o
}

// Overdraft returns the backing overdraft account.
func (o *OverdraftBankAccount) Overdraft() *OverdraftAccount {
	return o.overdraft
}

// Credit applies amount overdraft-first: while the overdraft balance is
// negative, incoming funds fill it toward (never past) zero, and only
// the remainder reaches the primary balance. The split is a bounded CAS
// loop over the overdraft cell; whichever way the races land, the total
// credited is exactly amount.
func (o *OverdraftBankAccount) Credit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}

	remainder := amount
	err := retry.Do("credit overdraft", o.attempts, func() (bool, error) {
		od := o.overdraft.balance.Load()
		if od >= 0 {
			return true, nil
		}
		fill := min(remainder, -od)
		if !o.overdraft.balance.CompareAndSwap(od, od+fill) {
			return false, nil
		}
		remainder -= fill
		return true, nil
	})
	if err != nil {
		return err
	}

	if remainder > 0 {
		o.balance.Add(remainder)
	}
	// Filling the overdraft frees capacity even when nothing reached
	// the primary balance, so every credit counts as a wakeup.
	o.wakeups.Add(1)
	return o.drainFutures()
}

// drawFromOverdraft is the shortfall policy for overdraft accounts: a
// two-phase debit across the primary and overdraft cells.
//
// Phase one tentatively zeroes any remaining positive primary portion
// and registers a rollback. Phase two draws the shortfall from the
// overdraft, but only down to its limit. Every non-commit exit - a
// Deferred for insufficient total capacity, or a Retry for a lost race -
// runs the registered rollbacks in reverse order, so the primary balance
// is exactly restored before the caller re-evaluates or queues the
// payment.
func (o *OverdraftBankAccount) drawFromOverdraft(amount, have int64) (outcome, error) {
	var rollbacks []func()
	abort := func() {
		for i := len(rollbacks) - 1; i >= 0; i-- {
			rollbacks[i]()
		}
	}

	var debited int64
	if have > 0 {
		if !o.balance.CompareAndSwap(have, 0) {
			return outcomeRetry, nil
		}
		debited = have
		rollbacks = append(rollbacks, func() {
			o.balance.Add(debited)
		})
	}

	shortfall := amount - debited
	od := o.overdraft.balance.Load()
	if od-shortfall < o.overdraft.limit {
		// Insufficient total capacity: return the tentative
		// primary debit and queue the payment.
		abort()
		return outcomeDeferred, nil
	}
	if !o.overdraft.balance.CompareAndSwap(od, od-shortfall) {
		// Lost the overdraft race. Both balances must be re-read
		// consistently, so roll back and retry from scratch.
		abort()
		return outcomeRetry, nil
	}

	// Commit: the rollback list is discarded.
	return outcomeSuccess, nil
}
