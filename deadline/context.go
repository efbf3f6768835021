package deadline

import (
	"context"
	"time"
)

// guardCtx carries the guard's deadline on the derived context so
// downstream code can budget against it. Cancellation is delivered by
// the guard's timer, not by the runtime deadline machinery, which keeps
// the cancellation cause under the guard's control.
type guardCtx struct {
	context.Context
	deadline time.Time
}

// Deadline reports the earlier of the guard's deadline and any deadline
// inherited from the parent.
func (c *guardCtx) Deadline() (time.Time, bool) {
	if pd, ok := c.Context.Deadline(); ok && pd.Before(c.deadline) {
		return pd, true
	}
	return c.deadline, true
}
