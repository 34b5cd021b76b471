// Package internaldefs holds the stable metric names and bucket boundaries
// shared by the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters expose identical names for the same gate counters. Changing a
// definition changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import the authgate root package or any exporter package.
//   - Perform I/O.
package internaldefs
