package deadline

import (
	"context"
	"time"
)

// Run executes fn under a guard that expires delay after entry. fn
// receives the guarded context; Run exits the guard with fn's error
// and returns the settled result. The enter/exit protocol cannot be
// misused through Run.
func Run(ctx context.Context, delay time.Duration, fn func(context.Context) error, optFns ...Option) error {
	return runGuard(New(delay, optFns...), ctx, fn)
}

// RunAt is Run with an absolute deadline.
func RunAt(ctx context.Context, at time.Time, fn func(context.Context) error, optFns ...Option) error {
	return runGuard(At(at, optFns...), ctx, fn)
}

func runGuard(g *Guard, ctx context.Context, fn func(context.Context) error) error {
	gctx, err := g.Enter(ctx)
	if err != nil {
		return err
	}
	return g.Exit(fn(gctx))
}

// Call is Run for work that produces a value. The value comes back as
// fn produced it; the error is the guard-settled one.
func Call[T any](ctx context.Context, delay time.Duration, fn func(context.Context) (T, error), optFns ...Option) (T, error) {
	g := New(delay, optFns...)
	gctx, err := g.Enter(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(gctx)
	return v, g.Exit(err)
}
