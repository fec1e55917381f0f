package ledger

import "sync"

// Payment is an immutable standing obligation: "this account owes Payee
// Amount". Created when a transfer cannot complete immediately, removed
// only after a successful replay.
type Payment struct {
	Payee  Account
	Amount int64
}

// paymentQueue is a thread-safe FIFO queue of deferred payments.
//
// Multiple producers (racing transfers that defer) may enqueue, but only
// one logical consumer exists at a time: the drain running under the
// account's gate. The queue is owned exclusively by its account; nothing
// outside the account mutates it.
//
// The queue is unbounded so deferring a payment can never block the
// calling transfer.
type paymentQueue struct {
	mu       sync.Mutex
	payments []Payment
}

// Enqueue appends a payment to the back of the queue.
// Thread-safe: may be called from any goroutine.
func (q *paymentQueue) Enqueue(p Payment) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payments = append(q.payments, p)
}

// Peek returns the oldest payment without removing it.
// Returns (Payment{}, false) if the queue is empty.
func (q *paymentQueue) Peek() (Payment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.payments) == 0 {
		return Payment{}, false
	}
	return q.payments[0], true
}

// Pop removes the oldest payment. Only the drain calls this, and only
// after the head has been successfully replayed.
func (q *paymentQueue) Pop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.payments) == 0 {
		return
	}

	// Nil out the slot so the Payee reference does not outlive the
	// obligation through the backing array.
	q.payments[0] = Payment{}

	if len(q.payments) == 1 {
		q.payments = q.payments[:0]
	} else {
		q.payments = q.payments[1:]
	}
}

// Len returns the current queue length.
func (q *paymentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.payments)
}

// Snapshot returns a copy of the queue, oldest first. The copy is
// detached: later queue mutations do not affect it.
func (q *paymentQueue) Snapshot() []Payment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Payment, len(q.payments))
	copy(out, q.payments)
	return out
}
