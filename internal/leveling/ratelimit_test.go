package leveling

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestLimiterCap(t *testing.T) {
	limiter := NewLimiter(300)
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter.WithClock(clock)

	if limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("fresh user should not be limited")
	}

	limiter.RecordAward("g1", "u1", 299)
	if limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("299 of 300 should not be limited")
	}

	limiter.RecordAward("g1", "u1", 1)
	if !limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("300 of 300 should be limited")
	}

	if limiter.IsRateLimited("g1", "u2") {
		t.Fatalf("other user should not be limited")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	limiter := NewLimiter(100)
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter.WithClock(clock)

	limiter.RecordAward("g1", "u1", 100)
	if !limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("expected limited at cap")
	}

	clock.Advance(59 * time.Minute)
	if !limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("expected still limited inside the window")
	}

	clock.Advance(time.Minute)
	if limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("expected reset after the window elapsed")
	}

	// The stale entry must not leak its old count into the new window.
	limiter.RecordAward("g1", "u1", 50)
	if limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("50 of 100 in a fresh window should not be limited")
	}
}

func TestLimiterDisabled(t *testing.T) {
	limiter := NewLimiter(0)
	limiter.RecordAward("g1", "u1", 10000)
	if limiter.IsRateLimited("g1", "u1") {
		t.Fatalf("zero cap disables the limiter")
	}
}
