package llm

import (
	"testing"
	"time"
)

func TestBudgetPerMinute(t *testing.T) {
	now := time.Now()
	b := NewBudget(2, 0)
	b.now = func() time.Time { return now }

	if !b.TryAcquire() || !b.TryAcquire() {
		t.Fatal("first two acquires should succeed")
	}
	if b.TryAcquire() {
		t.Fatal("third acquire within the minute should fail")
	}

	now = now.Add(61 * time.Second)
	if !b.TryAcquire() {
		t.Fatal("acquire after the window passed should succeed")
	}
}

func TestBudgetPerHour(t *testing.T) {
	now := time.Now()
	b := NewBudget(0, 3)
	b.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !b.TryAcquire() {
			t.Fatalf("acquire %d should succeed", i+1)
		}
		now = now.Add(2 * time.Minute)
	}
	if b.TryAcquire() {
		t.Fatal("fourth acquire within the hour should fail")
	}

	now = now.Add(time.Hour)
	if !b.TryAcquire() {
		t.Fatal("acquire after the hour passed should succeed")
	}
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget(0, 0)
	for i := 0; i < 100; i++ {
		if !b.TryAcquire() {
			t.Fatal("unlimited budget should never refuse")
		}
	}
}
