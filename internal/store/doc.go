// Package store defines the destination database contract the sync writes
// into, plus helpers shared by its adapters.
//
// Records are addressed by page id and their values are keyed by stable
// property id rather than display name. Adapters live in subpackages:
// notion talks to the Notion REST API and sqlite keeps a local single-file
// mirror.
package store
