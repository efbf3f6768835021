package deadline

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that a guard's own deadline expired and
// cancelled the guarded scope. It is a fresh error, not a wrapped
// cancellation: errors.Is matches context.DeadlineExceeded but never
// context.Canceled, and Unwrap yields nothing.
type TimeoutError struct {
	// Deadline is the absolute point the guard enforced.
	Deadline time.Time
}

func (e *TimeoutError) Error() string { return "deadline guard: deadline exceeded" }

// Timeout reports true, following the net.Error convention.
func (e *TimeoutError) Timeout() bool { return true }

// Temporary reports true: the same call may succeed given more time.
func (e *TimeoutError) Temporary() bool { return true }

// Is lets errors.Is(err, context.DeadlineExceeded) recognize guard
// timeouts without the caller importing this package.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// UsageError reports a broken enter/exit protocol: entering twice,
// entering without an owner context, or exiting a guard that was never
// entered. These are programmer errors and are never retried.
type UsageError struct {
	Op     string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("deadline guard: %s: %s", e.Op, e.Reason)
}
