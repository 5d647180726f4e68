// Package sqlite implements store.Store on a local SQLite file. It serves as
// an offline mirror target and as a realistic destination in tests.
//
// Property values are stored as a JSON object per record, keyed by property
// id. Created and edited times are maintained by the store itself.
package sqlite
