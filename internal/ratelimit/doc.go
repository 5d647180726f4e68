// Package ratelimit paces outbound catalog requests.
//
// Limiter holds the adaptive delay shared by every provider client in a sync
// run: it relaxes toward 300ms while calls succeed and backs off toward 2s when
// a provider throttles. RetryPolicy carries the retry ceilings and backoff
// schedule applied to rate-limited and transient failures.
package ratelimit
