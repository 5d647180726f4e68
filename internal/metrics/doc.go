// Package metrics records run telemetry in a Prometheus registry.
//
// A Recorder implements both the catalog request observer and the syncer
// run observer. Runs are one-shot processes, so the registry is exported to
// a node_exporter textfile at the end of a run instead of being scraped.
package metrics
