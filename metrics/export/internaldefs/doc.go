// Package internaldefs holds the metric names, help strings, and bucket bounds
// shared by the Prometheus and OTel exporters, so both publish identical series.
//
// It imports the root package only for MetricID constants and performs no I/O.
package internaldefs
