package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Adaptive delay bounds shared by every catalog client in a run.
const (
	DefaultInitialDelay = 800 * time.Millisecond
	DefaultMinDelay     = 300 * time.Millisecond
	DefaultMaxDelay     = 2 * time.Second

	decayFactor   = 0.9
	backoffFactor = 2.0
)

// Config bounds the adaptive delay. Zero values fall back to the defaults.
type Config struct {
	Initial time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Limiter spaces outbound calls by an adaptive delay. Successful calls shrink
// the delay toward Min and throttle responses grow it toward Max.
type Limiter struct {
	mu    sync.Mutex
	delay time.Duration
	min   time.Duration
	max   time.Duration
	next  time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New constructs a limiter with bounds normalized from cfg.
func New(cfg Config) *Limiter {
	minDelay := cfg.Min
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	maxDelay := cfg.Max
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	initial := cfg.Initial
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	return &Limiter{
		delay: clamp(initial, minDelay, maxDelay),
		min:   minDelay,
		max:   maxDelay,
		now:   time.Now,
		sleep: SleepWithContext,
	}
}

// Acquire blocks until the caller may issue its next request. Slots are
// reserved under the lock, so concurrent workers are spaced by the delay that
// was current when they arrived. Cancellation only shortens the wait.
func (l *Limiter) Acquire(ctx context.Context) {
	if l == nil {
		return
	}
	l.mu.Lock()
	now := l.now()
	start := l.next
	if start.Before(now) {
		start = now
	}
	l.next = start.Add(l.delay)
	wait := start.Sub(now)
	l.mu.Unlock()

	_ = l.sleep(ctx, wait)
}

// Success decays the delay toward the lower bound.
func (l *Limiter) Success() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = clamp(time.Duration(float64(l.delay)*decayFactor), l.min, l.max)
}

// Throttled records a provider throttle response. The delay grows
// multiplicatively and the next acquisition is pushed out by at least the
// larger of the new delay and retryAfter. The enforced wait is returned.
func (l *Limiter) Throttled(retryAfter time.Duration) time.Duration {
	if l == nil {
		return retryAfter
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = clamp(time.Duration(float64(l.delay)*backoffFactor), l.min, l.max)
	wait := l.delay
	if retryAfter > wait {
		wait = retryAfter
	}
	if until := l.now().Add(wait); until.After(l.next) {
		l.next = until
	}
	return wait
}

// Delay returns the current adaptive delay.
func (l *Limiter) Delay() time.Duration {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
