// Package musicbrainz is the authoritative music catalog client. It resolves
// recordings by ISRC, releases by UPC/EAN barcode, and artists by their linked
// Spotify URL, and it reports the release, artist, and label each entity
// belongs to so the sync can build the track→album→artist→label hierarchy.
//
// Requests are paced to one per second on top of the shared adaptive limiter.
package musicbrainz
