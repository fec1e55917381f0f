// Package ledger implements the lock-free account hierarchy.
//
// Every account holds its balance in an atomic 64-bit cell and moves money
// with a debit-then-credit protocol: the payer debits itself first, then
// credits the payee. No mutex or condition variable is ever taken on the
// money path; all coordination is compare-and-swap with bounded retries.
//
// ARCHITECTURE:
//
// Three account variants share the Account contract:
//
//   - CashAccount: unconstrained baseline. Debit is an unconditional
//     atomic add, the balance may go negative without bound. Demonstrates
//     the debit-first ordering with no floor or queueing logic.
//
//   - BankAccount: non-negative floor with future payments. A transfer
//     that cannot be funded right now is never an error - the obligation
//     is queued as a Payment and replayed automatically, in strict FIFO
//     order, whenever a credit lands.
//
//   - OverdraftBankAccount: BankAccount plus a secondary overdraft
//     balance bounded below by a fixed limit. Shortfalls draw on the
//     overdraft through a tentative-debit/rollback protocol; credits fill
//     a negative overdraft before touching the primary balance.
//
// Transfer Outcome State Machine:
//
// Each transfer attempt resolves to one of three tagged outcomes:
//
//	Success  - funds moved, payee credited
//	Deferred - obligation queued (or left queued), nothing moved
//	Retry    - lost a CAS race, re-read and try again
//
// Retry is bounded (retry.DefaultAttempts); exhausting the budget is a
// fatal retries-exhausted error, never a silent failure.
//
// Drain Cascade:
//
// Credit unconditionally triggers the receiving account's own queue drain.
// The drain holds the account's gate, replays obligations oldest-first,
// stops at the first head it cannot fund, and then cascades into each
// distinct payee it paid. A drain that finds the gate already held returns
// immediately: the in-progress drain re-reads the balance on every attempt
// and therefore observes the credit that just landed.
//
// FIFO FAIRNESS:
//
// Fairness holds only within one account's queue: a later obligation is
// never attempted while an earlier one is unresolved, even when the later
// one is individually affordable. There is no ordering across accounts,
// and racing transfers into the same account commit in CAS-win order.
package ledger
