package gate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_TryAcquireRelease(t *testing.T) {
	var g Gate
	assert.False(t, g.Held(), "zero-value gate should be open")

	require.True(t, g.TryAcquire())
	assert.True(t, g.Held())
	assert.False(t, g.TryAcquire(), "second acquire should fail while held")

	g.Release()
	assert.False(t, g.Held())
	assert.True(t, g.TryAcquire(), "acquire should succeed again after release")
}

func TestGate_Enter_RunsWhileHeld(t *testing.T) {
	var g Gate
	entered, err := g.Enter(func() error {
		assert.True(t, g.Held(), "gate should be held inside fn")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, entered)
	assert.False(t, g.Held(), "gate should be released after fn returns")
}

func TestGate_Enter_ReleasesOnError(t *testing.T) {
	var g Gate
	boom := errors.New("boom")

	entered, err := g.Enter(func() error { return boom })
	assert.True(t, entered)
	assert.ErrorIs(t, err, boom)
	assert.False(t, g.Held(), "gate should be released even when fn fails")
}

func TestGate_Enter_BouncesWhenHeld(t *testing.T) {
	var g Gate
	require.True(t, g.TryAcquire())

	ran := false
	entered, err := g.Enter(func() error { ran = true; return nil })
	require.NoError(t, err)
	assert.False(t, entered)
	assert.False(t, ran, "fn must not run when the gate is already held")
}

func TestGate_SingleHolderUnderContention(t *testing.T) {
	var g Gate
	var inside atomic.Int64
	var maxInside atomic.Int64
	var entries atomic.Int64

	const goroutines = 64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				entered, _ := g.Enter(func() error {
					n := inside.Add(1)
					for {
						max := maxInside.Load()
						if n <= max || maxInside.CompareAndSwap(max, n) {
							break
						}
					}
					inside.Add(-1)
					return nil
				})
				if entered {
					entries.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), maxInside.Load(), "at most one holder at a time")
	assert.Greater(t, entries.Load(), int64(0))
	assert.False(t, g.Held())
}
