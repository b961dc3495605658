package llm

import (
	"sync"
	"time"
)

// Budget is a sliding-window call allowance: at most perMinute calls in the
// last minute and perHour calls in the last hour. A zero limit disables that
// window. It exists to cap spend, not to smooth traffic.
type Budget struct {
	mu         sync.Mutex
	timestamps []time.Time
	perMinute  int
	perHour    int
	now        func() time.Time
}

// NewBudget creates a budget with the given per-minute and per-hour limits.
func NewBudget(perMinute, perHour int) *Budget {
	return &Budget{perMinute: perMinute, perHour: perHour, now: time.Now}
}

// TryAcquire reports whether a call fits in both windows and, if so, records
// it. Callers that get false must skip the call entirely.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.perMinute == 0 && b.perHour == 0 {
		return true
	}

	now := b.now()
	b.prune(now)

	inLastMinute := 0
	for _, t := range b.timestamps {
		if now.Sub(t) < time.Minute {
			inLastMinute++
		}
	}
	if b.perMinute > 0 && inLastMinute >= b.perMinute {
		return false
	}
	if b.perHour > 0 && len(b.timestamps) >= b.perHour {
		return false
	}

	b.timestamps = append(b.timestamps, now)
	return true
}

func (b *Budget) prune(now time.Time) {
	keep := b.timestamps[:0]
	for _, t := range b.timestamps {
		if now.Sub(t) <= time.Hour {
			keep = append(keep, t)
		}
	}
	b.timestamps = keep
}
