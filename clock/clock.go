// Package clock abstracts one-shot timer scheduling behind a small
// interface so callers can run against the real time package, a
// deterministic manual clock in tests, or a shared batching queue.
package clock

import "time"

// Timer is a single pending callback registration. Stop reports whether
// it prevented the callback from running: false means the callback has
// already run, is about to run, or the timer was stopped before.
type Timer interface {
	Stop() bool
}

// Clock reports the current time and schedules one-shot callbacks.
// Callbacks run on a goroutine owned by the clock and must not block
// for long.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// System returns the Clock backed directly by the time package. Each
// AfterFunc uses its own runtime timer.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
