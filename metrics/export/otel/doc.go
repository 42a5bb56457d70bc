// Package otel publishes adminAuth metrics through an OpenTelemetry Meter.
//
// [New] registers one Int64ObservableCounter per adminAuth counter and one
// Int64ObservableGauge per latency bucket, all fed by a single callback that reads
// Service.MetricsSnapshot on each collection. The caller owns the MeterProvider.
package otel
