// Package prometheus serves engine metrics in the Prometheus text exposition
// format without a client library registry. Callers mount [Exporter.Handler]
// on their own mux.
package prometheus
