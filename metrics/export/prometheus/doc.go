// Package prometheus exposes gate metrics to a Prometheus registry.
//
// [NewCollector] implements [prometheus.Collector] with constant metrics
// built from one gate snapshot per scrape. Counter names are prefixed
// authgate_*_total; the single histogram is
// authgate_guard_evaluate_latency_seconds. [Handler] wraps a collector in a
// private registry for callers that just want a scrape endpoint.
//
// # What this package must NOT do
//
//   - Touch the global default registry. Callers choose where to register.
//   - Mutate gate state.
package prometheus
