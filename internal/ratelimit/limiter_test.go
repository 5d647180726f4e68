package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cfg)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestNewAppliesDefaults(t *testing.T) {
	l := New(Config{})
	if got := l.Delay(); got != DefaultInitialDelay {
		t.Fatalf("expected initial delay %v, got %v", DefaultInitialDelay, got)
	}
	clamped := New(Config{Initial: 10 * time.Second})
	if got := clamped.Delay(); got != DefaultMaxDelay {
		t.Fatalf("expected initial delay clamped to %v, got %v", DefaultMaxDelay, got)
	}
}

func TestThrottledIncreasesDelayUpToMax(t *testing.T) {
	l, _ := newTestLimiter(Config{})
	prev := l.Delay()
	for i := 0; i < 5; i++ {
		l.Throttled(0)
		got := l.Delay()
		if got > DefaultMaxDelay {
			t.Fatalf("delay %v exceeds max", got)
		}
		if prev < DefaultMaxDelay && got <= prev {
			t.Fatalf("expected delay to grow after throttle %d: %v -> %v", i, prev, got)
		}
		prev = got
	}
	if prev != DefaultMaxDelay {
		t.Fatalf("expected delay to saturate at %v, got %v", DefaultMaxDelay, prev)
	}
}

func TestSuccessDecreasesDelayDownToMin(t *testing.T) {
	l, _ := newTestLimiter(Config{})
	prev := l.Delay()
	for i := 0; i < 3; i++ {
		l.Success()
		got := l.Delay()
		if got >= prev {
			t.Fatalf("expected delay to shrink after success %d: %v -> %v", i, prev, got)
		}
		prev = got
	}
	for i := 0; i < 50; i++ {
		l.Success()
	}
	if got := l.Delay(); got != DefaultMinDelay {
		t.Fatalf("expected delay floor %v, got %v", DefaultMinDelay, got)
	}
}

func TestAcquireSpacesConsecutiveCalls(t *testing.T) {
	l, clock := newTestLimiter(Config{Initial: 500 * time.Millisecond})
	ctx := context.Background()
	l.Acquire(ctx)
	l.Acquire(ctx)
	l.Acquire(ctx)

	want := []time.Duration{0, 500 * time.Millisecond, time.Second}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), clock.sleeps)
	}
	for i, d := range want {
		if clock.sleeps[i] != d {
			t.Fatalf("sleep %d = %v, want %v", i, clock.sleeps[i], d)
		}
	}
}

func TestThrottledForcesWait(t *testing.T) {
	l, clock := newTestLimiter(Config{})
	ctx := context.Background()
	l.Acquire(ctx)

	wait := l.Throttled(5 * time.Second)
	if wait != 5*time.Second {
		t.Fatalf("expected retry-after to win, got %v", wait)
	}
	l.Acquire(ctx)
	if got := clock.sleeps[len(clock.sleeps)-1]; got != 5*time.Second {
		t.Fatalf("expected next acquire to wait 5s, got %v", got)
	}
}

func TestNilLimiterIsNoop(t *testing.T) {
	var l *Limiter
	l.Acquire(context.Background())
	l.Success()
	if got := l.Throttled(time.Second); got != time.Second {
		t.Fatalf("expected retry-after passthrough, got %v", got)
	}
}

func TestConcurrentAcquireIsSerialized(t *testing.T) {
	l, clock := newTestLimiter(Config{Initial: 400 * time.Millisecond})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Acquire(context.Background())
			l.Success()
		}()
	}
	wg.Wait()
	seen := map[time.Duration]bool{}
	for _, d := range clock.sleeps {
		if seen[d] {
			t.Fatalf("two workers received the same slot %v: %v", d, clock.sleeps)
		}
		seen[d] = true
	}
}
