// Package internaldefs holds the metric names and bucket bounds shared by the
// exporters, so every exporter publishes identical series.
package internaldefs
