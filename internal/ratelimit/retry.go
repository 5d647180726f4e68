package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Retry ceilings applied by catalog clients.
const (
	DefaultRateLimitRetries = 1
	DefaultTransientRetries = 3
	DefaultInitialBackoff   = 500 * time.Millisecond
	DefaultMaxBackoff       = 4 * time.Second
)

// RetryPolicy bounds how often a single request is reattempted.
type RetryPolicy struct {
	RateLimitRetries int
	TransientRetries int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// DefaultRetryPolicy returns the ceilings used when configuration is silent.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RateLimitRetries: DefaultRateLimitRetries,
		TransientRetries: DefaultTransientRetries,
		InitialBackoff:   DefaultInitialBackoff,
		MaxBackoff:       DefaultMaxBackoff,
	}
}

// Backoff returns the wait before transient retry number attempt (1-based):
// InitialBackoff doubled per attempt, capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.InitialBackoff
	if base <= 0 {
		base = DefaultInitialBackoff
	}
	ceiling := p.MaxBackoff
	if ceiling <= 0 {
		ceiling = DefaultMaxBackoff
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter reads a Retry-After header value in either delta-seconds or
// HTTP-date form. Unparseable values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := time.Parse(time.RFC1123, value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
