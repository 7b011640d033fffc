package util

import (
	"context"
	"time"
)

// Backoff doubles a delay on every failure up to a ceiling.
// It is not safe for concurrent use.
type Backoff struct {
	current  time.Duration
	initial  time.Duration
	maxDelay time.Duration
}

// NewBackoff returns a new Backoff with the given initial and maximum delays.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{
		current:  initial,
		initial:  initial,
		maxDelay: maxDelay,
	}
}

// Next returns the current delay and advances to the next value.
func (b *Backoff) Next() time.Duration {
	current := b.current
	b.current = min(b.current*2, b.maxDelay)
	return current
}

// Wait sleeps for the next delay. It returns ctx.Err() if ctx is done first.
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset sets the backoff back to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}
