package poller

import (
	"context"
	"time"
)

// Pacer spaces successive provider calls by a fixed interval so the poll
// loop stays inside the provider's request limits. Pacing policy lives
// here rather than in the iteration logic; a different limiter can be
// swapped in without touching the cycle.
type Pacer struct {
	delay time.Duration
}

// NewPacer builds a fixed-interval pacer. A non-positive delay disables
// pacing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks for the configured interval. It returns false when the
// context is cancelled first.
func (p *Pacer) Wait(ctx context.Context) bool {
	if p == nil || p.delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
