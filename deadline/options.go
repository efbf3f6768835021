package deadline

import (
	"context"
	"time"

	"github.com/NetPo4ki/go-deadline/clock"
)

type Option func(*Options)

type Options struct {
	Clock    clock.Clock
	Observer Observer
}

func defaultOptions() Options { return Options{Clock: clock.System()} }

// WithClock replaces the clock used to resolve deadlines and schedule
// the expiry callback. Tests use clock.NewManual; processes with very
// many guards can share one clock.NewBatch.
func WithClock(c clock.Clock) Option { return func(o *Options) { o.Clock = c } }

// WithObserver attaches lifecycle hooks to the guard.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// Observer receives guard lifecycle notifications. Implementations must
// be safe for concurrent use: GuardExpired runs on the clock's
// goroutine, the other hooks on the goroutine driving the guard.
type Observer interface {
	// GuardEntered fires when a scope opens. deadline is zero when the
	// guard cannot expire.
	GuardEntered(ctx context.Context, deadline time.Time)
	// GuardExpired fires when the deadline passes and the guard cancels
	// its scope.
	GuardExpired(ctx context.Context, deadline time.Time)
	// GuardRejected fires when a pending deadline is withdrawn.
	GuardRejected(ctx context.Context)
	// GuardExited fires when the scope settles. err is the settled
	// result Exit returned to the caller.
	GuardExited(ctx context.Context, lived time.Duration, err error, expired bool)
}
