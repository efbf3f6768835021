package otel

import (
	"context"
	"time"
)

// Nop is a no-op implementation of the deadline.Observer interface.
// It serves as a placeholder for an OpenTelemetry-backed observer without adding dependencies.
type Nop struct{}

// NewNop returns a no-op observer.
func NewNop() *Nop { return &Nop{} }

func (*Nop) GuardEntered(context.Context, time.Time)                 {}
func (*Nop) GuardExpired(context.Context, time.Time)                 {}
func (*Nop) GuardRejected(context.Context)                           {}
func (*Nop) GuardExited(context.Context, time.Duration, error, bool) {}
