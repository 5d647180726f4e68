// Package catalog defines the provider-neutral metadata model and the HTTP
// plumbing shared by every external catalog client.
//
// Record is the normalized shape each provider produces. Executor wraps the
// run-wide adaptive limiter, optional fixed-rate pacing, a circuit breaker per
// provider, and the retry policy, and it translates HTTP status codes into the
// services error markers. CachedTokenSource and ClientCredentials cover the
// OAuth client-credentials flows used by IGDb (via Twitch) and Spotify.
//
// Provider implementations live in subpackages (igdb, tmdb, musicbrainz,
// spotify, googlebooks, comicvine).
package catalog
