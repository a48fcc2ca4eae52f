// # internal/shared/util/throttle_test.go
package util

import (
	"context"
	"testing"
	"time"
)

func TestRebuildThrottle_AllowsBurstThenThrottles(t *testing.T) {
	th := NewRebuildThrottle()
	for i := 0; i < rebuildBurst; i++ {
		if !th.Allow() {
			t.Fatalf("burst rebuild %d must be allowed", i)
		}
	}
	if th.Allow() {
		t.Error("rebuild past the burst must be throttled")
	}
}

func TestRebuildThrottle_RefillsOverTime(t *testing.T) {
	th := NewRebuildThrottle()
	for i := 0; i < rebuildBurst; i++ {
		th.Allow()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := th.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestRebuildThrottle_WaitHonorsCancellation(t *testing.T) {
	th := NewRebuildThrottle()
	for i := 0; i < rebuildBurst; i++ {
		th.Allow()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := th.Wait(ctx); err == nil {
		t.Error("cancelled wait must fail")
	}
}
