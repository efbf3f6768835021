// Package errgroup binds golang.org/x/sync/errgroup to a deadline
// guard. The group's context cancels when the deadline passes, and
// Wait settles the result through the guard, so a group stopped by its
// own deadline reports a *deadline.TimeoutError instead of a bare
// cancellation.
package errgroup

import (
	"context"
	"sync"
	"time"

	xerrgroup "golang.org/x/sync/errgroup"

	"github.com/NetPo4ki/go-deadline/deadline"
)

// Group is an errgroup whose tasks collectively run under one deadline
// guard.
type Group struct {
	g       *xerrgroup.Group
	guard   *deadline.Guard
	once    sync.Once
	settled error
}

// WithDeadline creates a Group whose tasks must all finish within d of
// this call. Tasks should derive their work from the returned context;
// it is cancelled when the deadline passes, when any task fails, or
// when the parent is cancelled.
func WithDeadline(ctx context.Context, d time.Duration, opts ...deadline.Option) (*Group, context.Context, error) {
	return withGuard(deadline.New(d, opts...), ctx)
}

// WithDeadlineAt is WithDeadline with an absolute deadline.
func WithDeadlineAt(ctx context.Context, at time.Time, opts ...deadline.Option) (*Group, context.Context, error) {
	return withGuard(deadline.At(at, opts...), ctx)
}

func withGuard(guard *deadline.Guard, ctx context.Context) (*Group, context.Context, error) {
	gctx, err := guard.Enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	eg, egctx := xerrgroup.WithContext(gctx)
	return &Group{g: eg, guard: guard}, egctx, nil
}

// Go runs f as a group task.
func (g *Group) Go(f func() error) { g.g.Go(f) }

// TryGo runs f only if the group's concurrency limit allows it,
// reporting whether it started.
func (g *Group) TryGo(f func() error) bool { return g.g.TryGo(f) }

// SetLimit bounds the number of concurrently running tasks. It must be
// called before any task starts.
func (g *Group) SetLimit(n int) { g.g.SetLimit(n) }

// Wait blocks until all tasks have returned, then settles the group's
// error through the guard. Calling Wait again returns the same settled
// result.
func (g *Group) Wait() error {
	g.once.Do(func() { g.settled = g.guard.Exit(g.g.Wait()) })
	return g.settled
}

// Expired reports whether the group's deadline fired.
func (g *Group) Expired() bool { return g.guard.Expired() }
