package retry

import (
	"errors"
	"fmt"
	"time"
)

// ExhaustedError is returned when a bounded retry loop fails to make
// progress within its attempt budget or deadline.
//
// This is the liveness escape valve of the whole system: CAS races are
// expected to resolve within a few attempts, so exhaustion indicates
// pathological contention or a logic bug. Callers must propagate it,
// never retry around it.
type ExhaustedError struct {
	// Op names the operation that ran out of budget.
	Op string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	// Elapsed is how long the loop ran. Zero for attempt-bounded loops.
	Elapsed time.Duration
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if e.Elapsed > 0 {
		return fmt.Sprintf("%s: retries exhausted after %d attempts in %s", e.Op, e.Attempts, e.Elapsed)
	}
	return fmt.Sprintf("%s: retries exhausted after %d attempts", e.Op, e.Attempts)
}

// IsExhausted returns true if the error is an ExhaustedError.
// Uses errors.As to handle wrapped errors.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
