// Package identity decides which catalog entity a destination record is
// about.
//
// Resolution prefers stored identifiers, then a pasted provider link, then a
// name search. Identifier lookups follow a per-kind route (for example ISRC
// via MusicBrainz before a Spotify id) so the strongest available id wins.
// A name search never runs while an id is known.
package identity
