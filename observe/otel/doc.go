// Package otel provides an OpenTelemetry observer plugin for the deadline library.
// It emits span events (enter, expire, reject, exit) with low overhead.
package otel
