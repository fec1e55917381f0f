package ledger

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOverdraft(t *testing.T, limit, initial int64) *OverdraftAccount {
	t.Helper()
	od, err := NewOverdraftAccount(limit, initial)
	require.NoError(t, err)
	return od
}

func TestNewOverdraftAccount_Validation(t *testing.T) {
	_, err := NewOverdraftAccount(5, 0)
	assert.ErrorIs(t, err, ErrPositiveOverdraftLimit)

	_, err = NewOverdraftAccount(-10, -11)
	assert.ErrorIs(t, err, ErrBelowOverdraftLimit)

	od, err := NewOverdraftAccount(-10, -10)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), od.Balance())
	assert.Equal(t, int64(-10), od.Limit())
}

func TestOverdraftBankAccount_TransferDrawsOnOverdraft(t *testing.T) {
	a := NewOverdraftBankAccount(5, newOverdraft(t, -20, 0))
	b := NewBankAccount(0)

	require.NoError(t, a.Transfer(b, 12))
	assert.Equal(t, int64(0), a.Balance(), "primary drained to zero first")
	assert.Equal(t, int64(-7), a.Overdraft().Balance(), "shortfall drawn from overdraft")
	assert.Equal(t, int64(12), b.Balance())
	assert.Empty(t, a.FuturePayments())
}

func TestOverdraftBankAccount_TransferFromOverdraftOnly(t *testing.T) {
	a := NewOverdraftBankAccount(0, newOverdraft(t, -20, 0))
	b := NewBankAccount(0)

	require.NoError(t, a.Transfer(b, 15))
	assert.Equal(t, int64(0), a.Balance())
	assert.Equal(t, int64(-15), a.Overdraft().Balance())
	assert.Equal(t, int64(15), b.Balance())
}

func TestOverdraftBankAccount_DeferralWhenCapacityShort(t *testing.T) {
	a := NewOverdraftBankAccount(4, newOverdraft(t, -10, 0))
	b := NewBankAccount(0)

	// 4 primary + 10 overdraft capacity < 20: defer, and the tentative
	// primary debit must be rolled back exactly.
	require.NoError(t, a.Transfer(b, 20))
	assert.Equal(t, int64(4), a.Balance(), "tentative primary debit rolled back")
	assert.Equal(t, int64(0), a.Overdraft().Balance())
	assert.Equal(t, int64(0), b.Balance())

	queued := a.FuturePayments()
	require.Len(t, queued, 1)
	assert.Equal(t, int64(20), queued[0].Amount)
}

func TestOverdraftBankAccount_CreditFillsOverdraftFirst(t *testing.T) {
	a := NewOverdraftBankAccount(0, newOverdraft(t, -20, -8))

	require.NoError(t, a.Credit(5))
	assert.Equal(t, int64(-3), a.Overdraft().Balance(), "credit fills overdraft toward zero")
	assert.Equal(t, int64(0), a.Balance(), "nothing reaches primary while overdraft is negative")

	require.NoError(t, a.Credit(10))
	assert.Equal(t, int64(0), a.Overdraft().Balance(), "overdraft filled to zero, never past it")
	assert.Equal(t, int64(7), a.Balance(), "remainder lands on primary")
}

func TestOverdraftBankAccount_CreditWithZeroOverdraftGoesToPrimary(t *testing.T) {
	a := NewOverdraftBankAccount(3, newOverdraft(t, -20, 0))

	require.NoError(t, a.Credit(9))
	assert.Equal(t, int64(0), a.Overdraft().Balance())
	assert.Equal(t, int64(12), a.Balance())
}

func TestOverdraftBankAccount_DeferredPaymentResolvesThroughOverdraftRepayment(t *testing.T) {
	a := NewOverdraftBankAccount(0, newOverdraft(t, -5, -5))
	b := NewBankAccount(0)

	// No capacity at all: the payment queues.
	require.NoError(t, a.Transfer(b, 3))
	require.Len(t, a.FuturePayments(), 1)

	// 5 repays the overdraft, then 3 more funds the queued payment.
	require.NoError(t, a.Credit(8))
	assert.Equal(t, int64(0), a.Overdraft().Balance())
	assert.Equal(t, int64(0), a.Balance())
	assert.Equal(t, int64(3), b.Balance())
	assert.Empty(t, a.FuturePayments())
}

func TestOverdraftBankAccount_ReplayMayDrawOnOverdraft(t *testing.T) {
	a := NewOverdraftBankAccount(0, newOverdraft(t, -10, 0))
	b := NewBankAccount(0)
	c := NewBankAccount(0)

	// Overdraft capacity funds the first transfer entirely, so only a
	// larger second transfer queues.
	require.NoError(t, a.Transfer(b, 10))
	require.NoError(t, a.Transfer(c, 4))
	require.Len(t, a.FuturePayments(), 1)

	// A credit of 9 brings the overdraft to -1: the queued 4 replays by
	// zeroing the fresh primary remainder and drawing the rest.
	require.NoError(t, a.Credit(13))
	assert.Equal(t, int64(0), a.Balance())
	assert.Equal(t, int64(-1), a.Overdraft().Balance())
	assert.Equal(t, int64(10), b.Balance())
	assert.Equal(t, int64(4), c.Balance())
	assert.Empty(t, a.FuturePayments())
}

func TestOverdraftBankAccount_ConservationUnderConcurrency(t *testing.T) {
	const accounts = 6
	const initial = int64(500)
	const limit = int64(-200)
	const workers = 12
	const transfersPerWorker = 250

	all := make([]Account, accounts)
	for i := range all {
		all[i] = NewOverdraftBankAccount(initial, newOverdraft(t, limit, 0))
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < transfersPerWorker; i++ {
				from := rng.Intn(accounts)
				to := rng.Intn(accounts)
				if from == to {
					continue
				}
				amount := int64(rng.Intn(40) + 1)
				if err := all[from].Transfer(all[to], amount); err != nil {
					t.Errorf("transfer failed: %v", err)
					return
				}
			}
		}(int64(w))
	}
	wg.Wait()

	var total int64
	for _, a := range all {
		o := a.(*OverdraftBankAccount)
		total += o.Balance() + o.Overdraft().Balance()
		assert.GreaterOrEqual(t, o.Balance(), int64(0))
		assert.GreaterOrEqual(t, o.Overdraft().Balance(), limit, "overdraft floor must hold")
	}
	assert.Equal(t, initial*accounts, total, "primary plus overdraft must be conserved")
}
