package web

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.allow("a"); !ok {
			t.Fatalf("request %d denied", i)
		}
	}

	ok, wait := rl.allow("a")
	if ok {
		t.Fatal("third request allowed")
	}
	if wait != time.Minute {
		t.Errorf("wait = %v, want 1m", wait)
	}

	if ok, _ := rl.allow("b"); !ok {
		t.Error("other client denied")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := rl.allow("a"); !ok {
		t.Error("request after window denied")
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	rl.stop()
	rl.stop()
}
