// Package services defines shared utilities consumed by the sync orchestrator
// and the catalog and destination integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, targets, record IDs, stages, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. Markers decide whether a
//     failure aborts the run (auth, schema) or is recorded per record.
//
// Use these helpers when wiring new integrations so failure handling stays
// uniform across providers and stores.
package services
