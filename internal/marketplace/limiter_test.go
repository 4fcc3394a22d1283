package marketplace

import (
	"testing"
	"time"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *time.Time) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(max, window)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterOnePerSeventy(t *testing.T) {
	l, _ := newTestLimiter(1, 70*time.Second)

	if !l.Allow() {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow() {
		t.Fatalf("second request within the window should be denied")
	}
}

func TestLimiterWindowEviction(t *testing.T) {
	l, now := newTestLimiter(3, 60*time.Second)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow() {
		t.Fatalf("fourth request should be denied")
	}

	*now = now.Add(61 * time.Second)
	if !l.Allow() {
		t.Fatalf("request after window expiry should be allowed")
	}
}

func TestLimiterBlockFor(t *testing.T) {
	l, now := newTestLimiter(10, time.Second)

	l.BlockFor(60 * time.Second)
	if l.Allow() {
		t.Fatalf("blocked limiter must deny")
	}

	*now = now.Add(59 * time.Second)
	if l.Allow() {
		t.Fatalf("still inside the penalty block")
	}

	*now = now.Add(2 * time.Second)
	if !l.Allow() {
		t.Fatalf("penalty expired, request should pass")
	}
}

func TestLimiterBlockForNeverShortens(t *testing.T) {
	l, _ := newTestLimiter(10, time.Second)

	l.BlockFor(60 * time.Second)
	l.BlockFor(time.Second)

	if l.Allow() {
		t.Fatalf("shorter block must not override a longer one")
	}
}
