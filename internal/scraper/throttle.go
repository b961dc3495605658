package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the default spacing between outbound calls to the
// source site.
const DefaultMinInterval = 2 * time.Second

// Throttle serializes every outbound call to the source site behind a single
// process-wide gate: consecutive permits are spaced at least the configured
// interval apart. Cookie bootstraps, listing fetches and report fetches all
// share this one throttle.
type Throttle struct {
	lim *rate.Limiter
}

// NewThrottle creates a throttle with the given minimum interval between
// calls. A non-positive interval disables throttling.
func NewThrottle(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		return &Throttle{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until a permit is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}
