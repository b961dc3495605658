package scraper

import (
	"context"
	"testing"
	"time"
)

func TestThrottleSpacing(t *testing.T) {
	th := NewThrottle(50 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	// First permit is immediate, the next two are spaced 50ms apart.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three permits took %v; want at least 100ms", elapsed)
	}
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0)

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled throttle took %v; want effectively no wait", elapsed)
	}
}

func TestThrottleHonorsContext(t *testing.T) {
	th := NewThrottle(time.Hour)
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Wait(ctx); err == nil {
		t.Fatal("Wait should fail when the context expires before the permit")
	}
}
