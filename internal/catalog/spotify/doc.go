// Package spotify reads tracks, albums, and artists from the Spotify Web API.
// Its main job in a sync is to turn a pasted Spotify link into the ISRC or
// UPC that MusicBrainz resolves authoritatively.
package spotify
