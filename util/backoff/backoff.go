// Package backoff provides the exponential delay used between telemetry feed
// reconnect attempts.
package backoff

import (
	"context"
	"time"
)

// Backoff grows a delay geometrically up to a ceiling. It is not safe for
// concurrent use; each retry loop owns its own Backoff.
type Backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	currentDelay time.Duration
	attempts     int
}

// New creates a Backoff starting at initialDelay and multiplying the delay
// by multiplier after every wait, capped at maxDelay.
func New(initialDelay, maxDelay time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}
	return &Backoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		multiplier:   multiplier,
		currentDelay: initialDelay,
	}
}

// Wait sleeps for the current delay and then grows it. It returns ctx.Err()
// without growing the delay if ctx ends first.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.currentDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		b.attempts++
		next := time.Duration(float64(b.currentDelay) * b.multiplier)
		b.currentDelay = min(next, b.maxDelay)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset returns to the initial delay, typically after a connection succeeded.
func (b *Backoff) Reset() {
	b.currentDelay = b.initialDelay
	b.attempts = 0
}

// CurrentDelay returns the delay the next Wait will sleep for.
func (b *Backoff) CurrentDelay() time.Duration {
	return b.currentDelay
}

// Attempts returns the number of completed waits since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}
