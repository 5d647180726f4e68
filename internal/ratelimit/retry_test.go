package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Fatalf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepWithContext(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}
	if err := SleepWithContext(context.Background(), 0); err != nil {
		t.Fatalf("expected nil for zero duration, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := ParseRetryAfter("3", now); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}
	date := now.Add(10 * time.Second).Format(time.RFC1123)
	if got := ParseRetryAfter(date, now); got != 10*time.Second {
		t.Fatalf("expected 10s from http date, got %v", got)
	}
	if got := ParseRetryAfter("soon", now); got != 0 {
		t.Fatalf("expected zero for garbage, got %v", got)
	}
}
