package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentQueue_FIFO(t *testing.T) {
	var q paymentQueue
	payees := []*BankAccount{NewBankAccount(0), NewBankAccount(0), NewBankAccount(0)}

	for i, p := range payees {
		q.Enqueue(Payment{Payee: p, Amount: int64(i + 1)})
	}
	assert.Equal(t, 3, q.Len())

	for i, p := range payees {
		head, ok := q.Peek()
		require.True(t, ok)
		assert.Same(t, p, head.Payee)
		assert.Equal(t, int64(i+1), head.Amount)
		q.Pop()
	}
	assert.Equal(t, 0, q.Len())
}

func TestPaymentQueue_PeekDoesNotRemove(t *testing.T) {
	var q paymentQueue
	payee := NewBankAccount(0)
	q.Enqueue(Payment{Payee: payee, Amount: 7})

	first, ok := q.Peek()
	require.True(t, ok)
	second, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, q.Len())
}

func TestPaymentQueue_Empty(t *testing.T) {
	var q paymentQueue
	_, ok := q.Peek()
	assert.False(t, ok)
	q.Pop() // no-op on empty queue
	assert.Equal(t, 0, q.Len())
}

func TestPaymentQueue_SnapshotIsDetached(t *testing.T) {
	var q paymentQueue
	payee := NewBankAccount(0)
	q.Enqueue(Payment{Payee: payee, Amount: 1})
	q.Enqueue(Payment{Payee: payee, Amount: 2})

	snap := q.Snapshot()
	require.Len(t, snap, 2)

	q.Pop()
	q.Pop()
	assert.Len(t, snap, 2, "snapshot must not track later mutations")
	assert.Equal(t, int64(1), snap[0].Amount)
	assert.Equal(t, int64(2), snap[1].Amount)
}

func TestPaymentQueue_ConcurrentEnqueue(t *testing.T) {
	var q paymentQueue
	payee := NewBankAccount(0)

	const producers = 8
	const perProducer = 250

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(Payment{Payee: payee, Amount: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
