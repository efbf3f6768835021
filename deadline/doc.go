// Package deadline bounds the wall-clock duration of context-aware
// work. A Guard cancels the context it derives for its scope when the
// deadline passes and, on exit, reclassifies the cancellation it
// itself caused as a TimeoutError. Everything else the scope produces
// passes through untouched, so nested guards and external
// cancellations keep their own attribution.
package deadline
