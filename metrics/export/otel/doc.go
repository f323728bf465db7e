// Package otel exports engine metrics through an OpenTelemetry Meter.
//
// Every counter becomes an Int64ObservableCounter named goidentity_*_total.
// The validation latency histogram is published as one cumulative gauge per
// bucket plus a _count gauge. A single callback reads
// [goIdentity.Engine.MetricsSnapshot] on each collection; the caller owns the
// MeterProvider.
package otel
