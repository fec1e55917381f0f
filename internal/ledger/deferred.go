package ledger

import (
	"fmt"
	"sync/atomic"

	"github.com/casbank/casbank/internal/gate"
	"github.com/casbank/casbank/internal/retry"
)

// shortfallPolicy decides what happens when a transfer finds the primary
// balance short. have is the balance read that came up short; the policy
// may raise funds from elsewhere (overdraft) and report Success, report
// Deferred to queue the obligation, or report Retry after a lost race.
//
// The policy only moves funds on the debit side. Crediting the payee on
// Success stays with the attempt step, so every funding path shares one
// credit site.
type shortfallPolicy func(amount, have int64) (outcome, error)

// BankAccount is the deferral-capable variant: its balance never goes
// below zero, and transfers it cannot fund are queued as future payments
// and replayed automatically when credits arrive.
type BankAccount struct {
	balance   atomic.Int64
	queue     paymentQueue
	drainGate gate.Gate
	attempts  int

	// wakeups counts credits. A drain pass records it on entry and
	// re-runs when it moved, so a credit that bounced off the held
	// gate is never lost: the holder picks it up after its pass.
	wakeups atomic.Int64

	// onShortfall is the strategy hook for underfunded transfers.
	// The base account always defers; the overdraft variant draws on
	// its secondary balance first.
	onShortfall shortfallPolicy
}

// NewBankAccount creates a deferral-capable account holding initial.
// initial must be non-negative; the account maintains the floor from
// then on.
func NewBankAccount(initial int64) *BankAccount {
	a := &BankAccount{attempts: retry.DefaultAttempts}
	a.balance.Store(initial)
	a.onShortfall = a.deferShortfall
	return a
}

// Balance returns the current primary balance.
func (a *BankAccount) Balance() int64 {
	return a.balance.Load()
}

// FuturePayments returns a snapshot of the queued obligations, oldest
// first.
func (a *BankAccount) FuturePayments() []Payment {
	return a.queue.Snapshot()
}

// Transfer moves amount to payee, deferring the obligation when funds are
// short. Deferral is normal flow and returns nil; only a precondition
// violation or an exhausted retry budget returns an error.
func (a *BankAccount) Transfer(payee Account, amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	return retry.Do("transfer", a.attempts, func() (bool, error) {
		out, err := a.attempt(payee, amount, false)
		if err != nil {
			return false, err
		}
		return out != outcomeRetry, nil
	})
}

// Credit adds amount to the balance and unconditionally triggers this
// account's own drain. The trigger is deliberate even when the payer is
// itself mid-drain of this account's queue: if the gate is held the
// trigger bounces, and the running drain observes the new balance on its
// next fresh read. No wake-up is ever missed.
func (a *BankAccount) Credit(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	a.balance.Add(amount)
	a.wakeups.Add(1)
	return a.drainFutures()
}

// attempt is one step of the transfer state machine.
//
// A fresh (non-replay) call behind a non-empty queue always defers:
// newer obligations never jump ahead of older ones, even when
// individually affordable. A replay call is draining the queue itself,
// so it skips that check - the obligation it replays is still at the
// head.
func (a *BankAccount) attempt(payee Account, amount int64, replay bool) (outcome, error) {
	if !replay && a.queue.Len() > 0 {
		a.queue.Enqueue(Payment{Payee: payee, Amount: amount})
		return outcomeDeferred, nil
	}

	have := a.balance.Load()
	if have >= amount {
		if !a.balance.CompareAndSwap(have, have-amount) {
			return outcomeRetry, nil
		}
		if err := payee.Credit(amount); err != nil {
			return 0, fmt.Errorf("credit payee: %w", err)
		}
		return outcomeSuccess, nil
	}

	out, err := a.onShortfall(amount, have)
	if err != nil {
		return 0, err
	}
	if out == outcomeSuccess {
		if err := payee.Credit(amount); err != nil {
			return 0, fmt.Errorf("credit payee: %w", err)
		}
	}
	if out == outcomeDeferred && !replay {
		a.queue.Enqueue(Payment{Payee: payee, Amount: amount})
	}
	return out, nil
}

// deferShortfall is the base policy: an underfunded transfer is always
// queued, never partially funded.
func (a *BankAccount) deferShortfall(amount, have int64) (outcome, error) {
	return outcomeDeferred, nil
}

// drainer is satisfied by accounts that maintain a future-payment queue.
// Paying such an account during a drain cascades into its own drain.
type drainer interface {
	drainFutures() error
}

// drainFutures resolves as many of this account's queued obligations as
// the current balance allows, then cascades into the accounts it paid.
//
// The account's own queue is fully drained (up to the first unpayable
// head) before any cascade runs, and each distinct payee is cascaded
// into once, which bounds the direct recursion of one drain pass to the
// number of distinct payees paid in that pass.
//
// If the gate is already held another thread is draining and this call
// returns immediately. The holder re-runs its pass whenever the wakeup
// counter moved while it was draining, so the credit that led here is
// observed either by a fresh pass of our own or by the holder's re-run.
func (a *BankAccount) drainFutures() error {
	for {
		before := a.wakeups.Load()
		paid, entered, err := a.drainOwnQueue()
		if err != nil {
			return err
		}
		for _, payee := range paid {
			d, ok := payee.(drainer)
			if !ok {
				continue
			}
			if err := d.drainFutures(); err != nil {
				return err
			}
		}
		if !entered || a.queue.Len() == 0 {
			return nil
		}
		if a.wakeups.Load() == before {
			return nil
		}
		// A credit landed during the pass and may have bounced off
		// our held gate. Go again with fresh reads.
	}
}

// drainOwnQueue replays queued payments oldest-first under the drain
// gate and returns the distinct payees that were paid, plus whether the
// gate was acquired at all.
func (a *BankAccount) drainOwnQueue() (paid []Account, entered bool, err error) {
	if !a.drainGate.TryAcquire() {
		return nil, false, nil
	}
	defer a.drainGate.Release()

	for {
		head, ok := a.queue.Peek()
		if !ok {
			return paid, true, nil
		}

		var out outcome
		err := retry.Do("replay future payment", a.attempts, func() (bool, error) {
			var aerr error
			out, aerr = a.attempt(head.Payee, head.Amount, true)
			if aerr != nil {
				return false, aerr
			}
			return out != outcomeRetry, nil
		})
		if err != nil {
			return paid, true, err
		}
		if out != outcomeSuccess {
			// Head is still unpayable. FIFO order forbids
			// skipping ahead to a later obligation.
			return paid, true, nil
		}

		a.queue.Pop()
		if !containsAccount(paid, head.Payee) {
			paid = append(paid, head.Payee)
		}
	}
}

func containsAccount(accounts []Account, target Account) bool {
	for _, a := range accounts {
		if a == target {
			return true
		}
	}
	return false
}
