// Package notion implements store.Store over the Notion REST API.
//
// Requests share the catalog executor plumbing (circuit breaker, retry
// policy, adaptive limiter) and are additionally paced to three per second.
// Property values are addressed by property id; the adapter caches database
// schemas and page parents so updates can encode values without re-reading.
package notion
