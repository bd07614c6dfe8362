package http

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRateLimiter(2)
	r.now = func() time.Time { return now }

	if !r.allow() || !r.allow() {
		t.Fatalf("expected first two events to pass")
	}
	if r.allow() {
		t.Fatalf("expected third event in the window to be rejected")
	}

	now = now.Add(time.Minute)
	if !r.allow() {
		t.Fatalf("expected a new window to reset the counter")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newRateLimiter(0)
	for range 1000 {
		if !r.allow() {
			t.Fatalf("disabled limiter must allow everything")
		}
	}
}
