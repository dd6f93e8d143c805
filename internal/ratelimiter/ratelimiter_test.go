package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
		wantNil           bool
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "zero burst raised", requestsPerSecond: 5, burst: 0},
		{name: "unlimited", requestsPerSecond: 0, burst: 10, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if tt.wantNil {
				if limiter != nil {
					t.Fatal("New() should return nil for a zero rate")
				}
				return
			}
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
			if limiter.limiter.Burst() < 1 {
				t.Fatalf("burst = %d, want >= 1", limiter.limiter.Burst())
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the burst and then refills.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("request should be rate-limited after burst exhausted")
	}

	time.Sleep(110 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("request should be allowed after token replenishment")
	}
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first request should succeed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second request should succeed after waiting: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Fatalf("wait time %v outside expected range 50ms-300ms", elapsed)
	}
}

// TestWaitContextCancellation verifies that Wait() respects context cancellation.
func TestWaitContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait() should return error when the token cannot arrive before the deadline")
	}
}

// TestNilLimiter verifies that a disabled limiter never throttles.
func TestNilLimiter(t *testing.T) {
	var limiter *RateLimiter

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("nil limiter rejected request %d", i)
		}
	}
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("nil limiter Wait on cancelled ctx = %v, want context.Canceled", err)
	}
	if limiter.Tokens() <= 0 {
		t.Fatal("nil limiter should report unlimited tokens")
	}
}
