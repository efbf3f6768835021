// Package prom exports deadline guard activity as Prometheus metrics.
// Metrics implements the deadline.Observer interface.
package prom

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for settled guard outcomes.
const (
	outcomeOK        = "ok"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
)

// Metrics is an observer that counts guard transitions and measures
// scope lifetimes. All hooks are safe for concurrent use; the expiry
// hook runs on the clock's goroutine.
type Metrics struct {
	active   prometheus.Gauge
	entered  prometheus.Counter
	expired  prometheus.Counter
	rejected prometheus.Counter
	exited   *prometheus.CounterVec
	lived    prometheus.Histogram
}

// New builds the observer and registers its collectors with reg. A nil
// reg registers with the default registerer. Registering two instances
// with the same registerer fails with the usual duplicate-collector
// error.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "deadline_guard_active",
				Help: "Number of currently entered deadline guards.",
			},
		),
		entered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deadline_guard_entered_total",
				Help: "Total number of guard scopes opened.",
			},
		),
		expired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deadline_guard_expired_total",
				Help: "Total number of guards whose deadline fired.",
			},
		),
		rejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deadline_guard_rejected_total",
				Help: "Total number of guards whose pending deadline was withdrawn.",
			},
		),
		exited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deadline_guard_exited_total",
				Help: "Total number of guard scopes settled, by outcome.",
			},
			[]string{"outcome"},
		),
		lived: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deadline_guard_scope_duration_seconds",
				Help:    "Time from guard entry to exit, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	for _, c := range []prometheus.Collector{m.active, m.entered, m.expired, m.rejected, m.exited, m.lived} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	// Pre-initialize outcome labels so every series appears in scrapes
	// with value 0 from startup, rather than only after the first
	// observation.
	for _, oc := range []string{outcomeOK, outcomeTimeout, outcomeCancelled, outcomeError} {
		m.exited.WithLabelValues(oc)
	}
	return m, nil
}

// GuardEntered records a scope opening.
func (m *Metrics) GuardEntered(_ context.Context, _ time.Time) {
	m.active.Inc()
	m.entered.Inc()
}

// GuardExpired records a deadline firing.
func (m *Metrics) GuardExpired(_ context.Context, _ time.Time) {
	m.expired.Inc()
}

// GuardRejected records a withdrawn deadline.
func (m *Metrics) GuardRejected(_ context.Context) {
	m.rejected.Inc()
}

// GuardExited records the settled outcome and the scope's lifetime.
func (m *Metrics) GuardExited(_ context.Context, lived time.Duration, err error, _ bool) {
	m.active.Dec()
	m.exited.WithLabelValues(outcome(err)).Inc()
	m.lived.Observe(lived.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	case errors.Is(err, context.Canceled):
		return outcomeCancelled
	default:
		return outcomeError
	}
}
