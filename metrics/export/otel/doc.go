// Package otel exposes gate counters and histograms as OpenTelemetry
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter per gate counter and an
// Int64ObservableGauge per histogram bucket. A single callback reads one
// metrics snapshot per collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate gate state.
package otel
