// Package wiring assembles the sync engine from configuration: the shared
// rate limiter, catalog providers, identity resolver, destination store,
// metrics recorder, syncer, and webhook router.
//
// The cmd tree calls Build once per process so every command shares the
// same construction rules, and tests substitute httptest endpoints through
// the provider base URLs in config.
package wiring
