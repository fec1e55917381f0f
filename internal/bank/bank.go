// Package bank implements the aggregate over a fixed set of accounts:
// index-addressed transfers plus a total-balance snapshot that is
// consistent without taking a lock.
//
// The snapshot protocol is a coarse readers-vs-writers fence built from
// two atomics. Transfers bump an in-flight counter for the duration of
// their debit-and-credit; a total-balance query raises a single-writer
// pending flag and spins, without blocking, until the in-flight counter
// reaches zero. Transfers that find the flag raised back off, decrement,
// and retry after yielding. Neither side ever blocks the other on a
// mutex; both sides are bounded by wall-clock deadlines as a liveness
// failsafe.
//
// A query may in principle restart its wait indefinitely under constant
// transfer pressure; the deadline is the only bound. That trade-off is
// deliberate.
package bank

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/casbank/casbank/internal/ledger"
	"github.com/casbank/casbank/internal/retry"
)

var (
	// ErrSameAccount rejects transfers where payer and payee are the
	// same index.
	ErrSameAccount = errors.New("payer and payee must differ")

	// ErrAccountIndex rejects out-of-range account indexes.
	ErrAccountIndex = errors.New("account index out of range")
)

// DefaultDeadline bounds transfer fencing and total-balance queries
// unless overridden. Purely a liveness failsafe; contention is expected
// to resolve in a handful of yields.
const DefaultDeadline = 2 * time.Second

// Bank aggregates a fixed, ordered set of accounts.
type Bank struct {
	accounts []ledger.Account

	// inflight counts transfers currently between debit and credit.
	inflight atomic.Int64
	// querying is the single-writer total-balance fence flag.
	querying atomic.Bool

	transferDeadline time.Duration
	queryDeadline    time.Duration
}

// Option configures a Bank.
type Option func(*Bank)

// WithTransferDeadline bounds how long a transfer may back off while
// total-balance queries hold the fence.
func WithTransferDeadline(d time.Duration) Option {
	return func(b *Bank) { b.transferDeadline = d }
}

// WithQueryDeadline bounds how long a total-balance query may wait to
// acquire the fence and for in-flight transfers to drain.
func WithQueryDeadline(d time.Duration) Option {
	return func(b *Bank) { b.queryDeadline = d }
}

// New creates a bank over the given accounts. The slice is copied; the
// account set is fixed for the bank's lifetime.
func New(accounts []ledger.Account, opts ...Option) *Bank {
	b := &Bank{
		accounts:         make([]ledger.Account, len(accounts)),
		transferDeadline: DefaultDeadline,
		queryDeadline:    DefaultDeadline,
	}
	copy(b.accounts, accounts)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NumberOfAccounts returns the size of the account set.
func (b *Bank) NumberOfAccounts() int {
	return len(b.accounts)
}

// Account returns the account at index i.
func (b *Bank) Account(i int) (ledger.Account, error) {
	if i < 0 || i >= len(b.accounts) {
		return nil, fmt.Errorf("%w: %d", ErrAccountIndex, i)
	}
	return b.accounts[i], nil
}

// Transfer moves amount from account i to account j. While a
// total-balance query holds the fence, the transfer backs off and
// retries after yielding, bounded by the transfer deadline.
func (b *Bank) Transfer(i, j int, amount int64) error {
	if i == j {
		return ErrSameAccount
	}
	payer, err := b.Account(i)
	if err != nil {
		return err
	}
	payee, err := b.Account(j)
	if err != nil {
		return err
	}

	var transferErr error
	err = retry.Deadline("bank transfer", b.transferDeadline, func() (bool, error) {
		return b.fencedTransfer(payer, payee, amount, &transferErr), nil
	})
	if err != nil {
		return err
	}
	return transferErr
}

// fencedTransfer runs one fence-checked transfer attempt. The in-flight
// increment happens before the flag check; a query that set the flag
// first will see the increment and keep waiting, and a query that
// missed it sees the decrement on back-off. Either way no snapshot ever
// observes a half-done transfer.
func (b *Bank) fencedTransfer(payer, payee ledger.Account, amount int64, transferErr *error) bool {
	b.inflight.Add(1)
	defer b.inflight.Add(-1)
	if b.querying.Load() {
		return false
	}
	*transferErr = payer.Transfer(payee, amount)
	return true
}

// TotalBalance returns the sum of every account's balances - primary
// plus overdraft - as of some instant at which no transfer was
// mid-flight. Only one query holds the fence at a time; acquiring it and
// waiting for in-flight transfers to drain are each bounded by the
// query deadline.
func (b *Bank) TotalBalance() (int64, error) {
	err := retry.Deadline("acquire total balance fence", b.queryDeadline, func() (bool, error) {
		return b.querying.CompareAndSwap(false, true), nil
	})
	if err != nil {
		return 0, err
	}
	defer b.querying.Store(false)

	err = retry.Deadline("quiesce in-flight transfers", b.queryDeadline, func() (bool, error) {
		return b.inflight.Load() == 0, nil
	})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, a := range b.accounts {
		total += a.Balance()
		if o, ok := a.(*ledger.OverdraftBankAccount); ok {
			total += o.Overdraft().Balance()
		}
	}
	return total, nil
}
