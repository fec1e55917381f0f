// Package retry provides the bounded retry loops used by every CAS cycle
// in the ledger.
//
// Two bounds are supported:
//
//   - Do: a fixed attempt count, for CAS loops over a single atomic cell
//     where contention is expected to resolve in a handful of attempts.
//   - Deadline: a wall-clock deadline with a yield between attempts, for
//     the bank aggregate's readers-vs-writers fencing where the wait
//     depends on other operations draining rather than on a single CAS.
//
// Both bounds are liveness failsafes, not part of the intended common
// case. Exhausting either one is a fatal condition: it signals
// pathological contention or a logic bug, and is surfaced as an
// *ExhaustedError rather than swallowed.
package retry

import (
	"runtime"
	"time"
)

// DefaultAttempts is the attempt budget for CAS loops unless a caller
// overrides it.
const DefaultAttempts = 5

// Step is one attempt of a retryable operation. It returns done=true when
// the operation completed (successfully or with a terminal outcome) and
// done=false when the attempt lost a race and should be retried. A non-nil
// error aborts the loop immediately and is returned unwrapped.
type Step func() (done bool, err error)

// Do runs step up to attempts times, returning nil as soon as a step
// reports done. The op string names the operation for diagnostics.
//
// Returns *ExhaustedError if every attempt reports done=false.
func Do(op string, attempts int, step Step) error {
	for i := 0; i < attempts; i++ {
		done, err := step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return &ExhaustedError{Op: op, Attempts: attempts}
}

// Deadline runs step until it reports done or the deadline passes, yielding
// the processor between attempts. The loop never blocks; it spins through
// step with runtime.Gosched so that the operations it is waiting on can
// make progress.
//
// Returns *ExhaustedError if the deadline passes first.
func Deadline(op string, timeout time.Duration, step Step) error {
	start := time.Now()
	deadline := start.Add(timeout)
	attempts := 0
	for {
		attempts++
		done, err := step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &ExhaustedError{Op: op, Attempts: attempts, Elapsed: time.Since(start)}
		}
		runtime.Gosched()
	}
}
