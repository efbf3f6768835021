package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/NetPo4ki/go-deadline/clock"
	"github.com/NetPo4ki/go-deadline/deadline"
)

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("new: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expected := []string{
		"deadline_guard_active",
		"deadline_guard_entered_total",
		"deadline_guard_expired_total",
		"deadline_guard_rejected_total",
		"deadline_guard_exited_total",
		"deadline_guard_scope_duration_seconds",
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first new: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("second registration on the same registerer should fail")
	}
}

func TestActiveGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	g := deadline.New(time.Minute, deadline.WithObserver(m))
	if _, err := g.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if val := getGaugeValue(t, reg, "deadline_guard_active"); val != 1 {
		t.Errorf("active gauge = %f, want 1", val)
	}
	if err := g.Exit(nil); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if val := getGaugeValue(t, reg, "deadline_guard_active"); val != 0 {
		t.Errorf("active gauge after exit = %f, want 0", val)
	}
}

func TestOutcomeLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	clk := clock.NewManual(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))
	opts := []deadline.Option{deadline.WithObserver(m), deadline.WithClock(clk)}

	// ok
	if err := deadline.Run(context.Background(), time.Second, func(context.Context) error {
		return nil
	}, opts...); err != nil {
		t.Fatalf("ok run: %v", err)
	}

	// timeout
	g := deadline.New(10*time.Millisecond, opts...)
	gctx, err := g.Enter(context.Background())
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	clk.Advance(20 * time.Millisecond)
	if out := g.Exit(gctx.Err()); out == nil {
		t.Fatal("expected timeout from exit")
	}

	// cancelled
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	if err := deadline.Run(parent, time.Second, func(ctx context.Context) error {
		return ctx.Err()
	}, opts...); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled run: %v", err)
	}

	// error
	boom := errors.New("boom")
	if err := deadline.Run(context.Background(), time.Second, func(context.Context) error {
		return boom
	}, opts...); err != boom {
		t.Fatalf("error run: %v", err)
	}

	for _, oc := range []string{outcomeOK, outcomeTimeout, outcomeCancelled, outcomeError} {
		if val := getCounterValue(t, reg, "deadline_guard_exited_total", "outcome", oc); val != 1 {
			t.Errorf("exited_total{outcome=%q} = %f, want 1", oc, val)
		}
	}
	if val := getCounterValue(t, reg, "deadline_guard_expired_total", "", ""); val != 1 {
		t.Errorf("expired_total = %f, want 1", val)
	}
	if count := getHistogramCount(t, reg, "deadline_guard_scope_duration_seconds"); count != 4 {
		t.Errorf("scope duration observations = %d, want 4", count)
	}
}

func TestRejectedCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	g := deadline.New(time.Minute, deadline.WithObserver(m))
	if _, err := g.Enter(context.Background()); err != nil {
		t.Fatalf("enter: %v", err)
	}
	g.Reject()
	if err := g.Exit(nil); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if val := getCounterValue(t, reg, "deadline_guard_rejected_total", "", ""); val != 1 {
		t.Errorf("rejected_total = %f, want 1", val)
	}
}

func getGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			metrics := fam.GetMetric()
			if len(metrics) > 0 && metrics[0].GetGauge() != nil {
				return metrics[0].GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("gauge %q not found", name)
	return 0
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name, labelName, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelName == "" && len(metric.GetLabel()) == 0 {
				return metric.GetCounter().GetValue()
			}
			if matchLabel(metric, labelName, labelValue) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("counter %q{%s=%q} not found", name, labelName, labelValue)
	return 0
}

func matchLabel(metric *dto.Metric, name, value string) bool {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

func getHistogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			metrics := fam.GetMetric()
			if len(metrics) > 0 && metrics[0].GetHistogram() != nil {
				return metrics[0].GetHistogram().GetSampleCount()
			}
		}
	}
	t.Fatalf("histogram %q not found", name)
	return 0
}
