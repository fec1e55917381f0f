// Package gate implements a single-holder atomic latch.
//
// A Gate admits at most one concurrent holder. Unlike a mutex, a failed
// acquisition never blocks: the caller simply observes that the gate is
// held and moves on. The ledger uses one Gate per deferral-capable
// account to ensure at most one thread drains that account's
// future-payment queue at any instant.
package gate

import "sync/atomic"

// Gate is a binary open/closed latch built on a single atomic boolean.
// The zero value is an open gate, ready for use.
type Gate struct {
	held atomic.Bool
}

// TryAcquire attempts to close the gate. It returns true if the caller now
// holds the gate, false if another holder already does. It never blocks.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release reopens the gate. Must only be called by the current holder.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Held reports whether the gate is currently closed. Advisory only: the
// answer may be stale by the time the caller acts on it.
func (g *Gate) Held() bool {
	return g.held.Load()
}

// Enter runs fn while holding the gate and guarantees release on every
// exit path, including an error return from fn. It returns entered=false
// without running fn when the gate is already held.
func (g *Gate) Enter(fn func() error) (entered bool, err error) {
	if !g.TryAcquire() {
		return false, nil
	}
	defer g.Release()
	return true, fn()
}
