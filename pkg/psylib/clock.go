package psylib

import (
	"context"
	"time"
)

// DefaultFrameRate is the frame rate used when a Scheduler is created
// without an explicit clock.
const DefaultFrameRate = 60.0

// FrameClock paces the Scheduler's frame loop. Wait blocks until the
// next frame boundary and returns its time.
type FrameClock interface {
	Wait(ctx context.Context) (time.Time, error)
}

// TickerClock is a FrameClock driven by a time.Ticker at a fixed rate.
type TickerClock struct {
	t *time.Ticker
}

// NewTickerClock creates a TickerClock firing fps times per second.
// Non-positive fps falls back to DefaultFrameRate.
func NewTickerClock(fps float64) *TickerClock {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerClock{
		t: time.NewTicker(time.Duration(float64(time.Second) / fps)),
	}
}

// Wait blocks until the next tick or context cancellation.
func (c *TickerClock) Wait(ctx context.Context) (time.Time, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case now := <-c.t.C:
		return now, nil
	}
}

// Stop releases the underlying ticker.
func (c *TickerClock) Stop() {
	c.t.Stop()
}

// ManualClock is a FrameClock advanced explicitly by Tick. It is the
// clock used by tests to run the frame loop deterministically.
type ManualClock struct {
	C chan time.Time
}

// NewManualClock creates a ManualClock with a generous tick buffer so
// tests can preload frames before starting the scheduler.
func NewManualClock() *ManualClock {
	return &ManualClock{C: make(chan time.Time, 256)}
}

// Tick delivers one frame at the given time. A zero time is replaced
// with time.Now().
func (c *ManualClock) Tick(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	c.C <- at
}

// Wait blocks until Tick delivers a frame or the context is cancelled.
func (c *ManualClock) Wait(ctx context.Context) (time.Time, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case now := <-c.C:
		return now, nil
	}
}
