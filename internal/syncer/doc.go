// Package syncer runs sync requests against a destination store.
//
// A run validates the target's database schemas, scans the records in scope
// and processes each one through resolve, fetch, merge and write on a
// bounded worker pool. Records whose last-synced marker is newer than their
// last edit are skipped without touching any catalog. Music records link to
// their album, artist and label, creating those records on demand.
package syncer
