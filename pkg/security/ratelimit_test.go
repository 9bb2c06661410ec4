package security

import (
	"testing"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	if !rl.Allow("client-a") {
		t.Fatal("first request should be allowed")
	}
	if !rl.Allow("client-a") {
		t.Fatal("second request should be allowed")
	}
	if rl.Allow("client-a") {
		t.Error("third request should be rejected beyond burst")
	}
}

func TestRateLimiter_ReusesClientLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)

	if !rl.Allow("client-a") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("client-a") {
		t.Error("same client should be throttled")
	}

	if got := len(rl.clientLimiters); got != 1 {
		t.Errorf("clientLimiters size = %d, want 1", got)
	}
}
