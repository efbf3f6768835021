package deadline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NetPo4ki/go-deadline/clock"
)

type guardState int

const (
	guardInit guardState = iota
	guardEntered
	guardExited
)

// Guard bounds one scope of context-aware work with a deadline. Enter
// derives the context the work must run under; expiry cancels it the
// same way any caller would. Exit converts the cancellation the guard
// itself caused into a *TimeoutError and passes everything else
// through untouched. Single use: entered at most once, then exited,
// then inert (Expired stays inspectable).
type Guard struct {
	mu       sync.Mutex
	state    guardState
	delay    time.Duration
	hasDelay bool
	deadline time.Time
	disabled bool
	expired  bool
	rejected bool
	timer    clock.Timer

	ctx    context.Context
	cancel context.CancelCauseFunc

	// terr is this guard's origin token: expiry cancels the derived
	// context with terr as the cause, and Exit recognizes its own
	// cancellation by comparing the cause against it.
	terr *TimeoutError

	clk clock.Clock
	obs Observer

	enteredAt time.Time
}

// New returns a guard that expires delay after Enter. The deadline is
// resolved against the guard's clock when Enter runs, not when the
// guard is built. A non-positive delay expires at the first checkpoint
// inside the scope: the cancellation goes through the timer, so
// straight-line code between Enter and the first context check still
// runs.
func New(delay time.Duration, optFns ...Option) *Guard {
	g := newGuard(optFns)
	g.delay = delay
	g.hasDelay = true
	return g
}

// At returns a guard that expires when the clock reaches t. The zero
// time means no deadline, as in net.Conn.SetDeadline.
func At(t time.Time, optFns ...Option) *Guard {
	g := newGuard(optFns)
	if t.IsZero() {
		g.disabled = true
		return g
	}
	g.deadline = t
	return g
}

// Disabled returns a guard with no deadline. Enter still validates the
// owner context, so callers can keep the enter/exit shape while a
// configuration switch turns the deadline off.
func Disabled(optFns ...Option) *Guard {
	g := newGuard(optFns)
	g.disabled = true
	return g
}

func newGuard(optFns []Option) *Guard {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	return &Guard{clk: opts.Clock, obs: opts.Observer}
}

// Enter opens the guarded scope: it resolves the deadline, derives the
// context the scope's work must run under, and arms the timer. The
// returned context reports the guard's deadline and is cancelled when
// it passes. Enter fails with *UsageError on re-entry or when ctx is
// nil; no timer is registered on failure.
func (g *Guard) Enter(ctx context.Context) (context.Context, error) {
	g.mu.Lock()
	if g.state != guardInit {
		g.mu.Unlock()
		return nil, &UsageError{Op: "enter", Reason: "guard already entered"}
	}
	if ctx == nil {
		g.mu.Unlock()
		return nil, &UsageError{Op: "enter", Reason: "no owner context"}
	}
	g.state = guardEntered
	g.enteredAt = g.clk.Now()

	if g.disabled || g.rejected {
		g.ctx = ctx
		g.mu.Unlock()
		if g.obs != nil {
			g.obs.GuardEntered(ctx, time.Time{})
		}
		return ctx, nil
	}

	if g.hasDelay {
		g.deadline = g.enteredAt.Add(g.delay)
	}
	g.terr = &TimeoutError{Deadline: g.deadline}
	child, cancel := context.WithCancelCause(ctx)
	g.cancel = cancel
	gctx := &guardCtx{Context: child, deadline: g.deadline}
	g.ctx = gctx
	wait := g.deadline.Sub(g.enteredAt)
	if wait < 0 {
		wait = 0
	}
	g.timer = g.clk.AfterFunc(wait, g.expire)
	deadline := g.deadline
	g.mu.Unlock()

	if g.obs != nil {
		g.obs.GuardEntered(gctx, deadline)
	}
	return gctx, nil
}

// expire runs on the clock's goroutine when the deadline passes. It
// only flips the flag and delivers the cancellation; the exit decision
// runs later, in the caller's control flow. Whoever locks first wins:
// a callback that finds the guard exited or rejected does nothing.
func (g *Guard) expire() {
	g.mu.Lock()
	if g.state != guardEntered || g.rejected {
		g.mu.Unlock()
		return
	}
	g.expired = true
	cancel, terr, ctx := g.cancel, g.terr, g.ctx
	g.mu.Unlock()

	cancel(terr)
	if g.obs != nil {
		g.obs.GuardExpired(ctx, terr.Deadline)
	}
}

// Reject withdraws the pending deadline: the timer is unregistered and
// the guard can no longer expire. It has no effect once the deadline
// has fired. Rejecting before Enter turns the guard into a passthrough.
func (g *Guard) Reject() {
	g.mu.Lock()
	if g.rejected || g.expired || g.state == guardExited {
		g.mu.Unlock()
		return
	}
	g.rejected = true
	timer := g.timer
	g.timer = nil
	ctx := g.ctx
	g.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if g.obs != nil && ctx != nil {
		g.obs.GuardRejected(ctx)
	}
}

// Exit settles the scope. err is whatever the guarded work returned;
// the result is what the scope's caller must see. Exit unregisters the
// timer, releases the derived context, and performs exactly one
// substitution: a cancellation caused by this guard's own expiry comes
// back as the guard's *TimeoutError. Success, business errors, and
// cancellations the guard did not cause pass through unchanged.
func (g *Guard) Exit(err error) error {
	g.mu.Lock()
	if g.state != guardEntered {
		g.mu.Unlock()
		return &UsageError{Op: "exit", Reason: "guard not entered"}
	}
	g.state = guardExited
	timer := g.timer
	g.timer = nil
	expired := g.expired
	cancel := g.cancel
	ctx := g.ctx
	terr := g.terr
	enteredAt := g.enteredAt
	g.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	out := err
	if err != nil && expired && ownExpiry(err, ctx, terr) {
		out = terr
	}

	if cancel != nil {
		cancel(context.Canceled)
	}
	if g.obs != nil {
		g.obs.GuardExited(ctx, g.clk.Now().Sub(enteredAt), out, expired)
	}
	return out
}

// ownExpiry reports whether err is a cancellation that this guard's
// expiry delivered. The cause carried by the derived context is the
// arbiter: a parent's cancellation or a foreign error never carries
// this guard's token, even when the deadline also passed.
func ownExpiry(err error, ctx context.Context, terr *TimeoutError) bool {
	if terr == nil {
		return false
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, terr) {
		return false
	}
	return context.Cause(ctx) == terr
}

// Expired reports whether the guard's timer fired. It stays readable
// after Exit, and it can be true even when Exit returned nil: the work
// may finish between the firing and the exit.
func (g *Guard) Expired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired
}

// Deadline returns the absolute deadline the guard enforces. ok is
// false for guards with no deadline, for rejected guards, and for
// relative guards before Enter resolves them.
func (g *Guard) Deadline() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disabled || g.rejected {
		return time.Time{}, false
	}
	if g.hasDelay && g.state == guardInit {
		return time.Time{}, false
	}
	if g.deadline.IsZero() {
		return time.Time{}, false
	}
	return g.deadline, true
}

// Context returns the derived context, or nil before Enter.
func (g *Guard) Context() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctx
}
