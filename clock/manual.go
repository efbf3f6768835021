package clock

import (
	"sync"
	"time"
)

// Manual is a Clock whose time advances only when the test says so.
// Callbacks never fire on their own: Advance (or Set) moves the clock
// and runs every due callback synchronously, in deadline order, before
// returning. That makes races around "the deadline passed but the body
// already finished" reproducible instead of timing-dependent.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	seq    int
}

// NewManual returns a Manual clock positioned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers f to run when the clock reaches now+d. A
// non-positive d makes the callback due immediately, firing on the next
// Advance call (including Advance(0)).
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clk: m, fireT: m.now.Add(d), f: f, seq: m.seq}
	m.seq++
	m.timers = append(m.timers, t)
	return t
}

// Pending reports how many callbacks are registered and not yet fired
// or stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d and runs all callbacks that
// became due, in deadline order. Callbacks run on the calling
// goroutine; a callback registering another already-due callback gets
// it fired in the same pass.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set moves the clock to target, firing due callbacks along the way.
// Moving backwards is ignored.
func (m *Manual) Set(target time.Time) {
	for {
		m.mu.Lock()
		t, i := m.nextDue(target)
		if t == nil {
			if target.After(m.now) {
				m.now = target
			}
			m.mu.Unlock()
			return
		}
		m.timers = append(m.timers[:i], m.timers[i+1:]...)
		if t.fireT.After(m.now) {
			m.now = t.fireT
		}
		t.fired = true
		f := t.f
		m.mu.Unlock()

		if f != nil {
			f()
		}
	}
}

// nextDue picks the earliest registration with fireT <= target,
// breaking ties by registration order. Caller holds m.mu.
func (m *Manual) nextDue(target time.Time) (*manualTimer, int) {
	var due *manualTimer
	idx := -1
	for i, t := range m.timers {
		if t.fireT.After(target) {
			continue
		}
		if due == nil || t.fireT.Before(due.fireT) || (t.fireT.Equal(due.fireT) && t.seq < due.seq) {
			due = t
			idx = i
		}
	}
	return due, idx
}

type manualTimer struct {
	clk   *Manual
	fireT time.Time
	f     func()
	seq   int
	fired bool
}

func (t *manualTimer) Stop() bool {
	m := t.clk
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.fired {
		return false
	}
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			t.fired = true
			return true
		}
	}
	return false
}
