package engine

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a test double that advances virtual time instead of sleeping.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// Sleeps records every non-zero duration passed to Sleep.
	Sleeps []time.Duration

	// OnSleep, if set, is called before each recorded sleep returns.
	OnSleep func(d time.Duration)
}

// NewFakeClock creates a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances virtual time by d. It still honours ctx so cancellation
// observed during a wait behaves as with the real clock.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.Sleeps = append(c.Sleeps, d)
	hook := c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Total returns the sum of all recorded sleeps.
func (c *FakeClock) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var t time.Duration
	for _, d := range c.Sleeps {
		t += d
	}
	return t
}

// RecordingReporter collects everything reported to it.
type RecordingReporter struct {
	mu     sync.Mutex
	Events []Event
	Cycles []CycleStatus
}

func (r *RecordingReporter) Event(e Event) {
	r.mu.Lock()
	r.Events = append(r.Events, e)
	r.mu.Unlock()
}

func (r *RecordingReporter) Cycle(s CycleStatus) {
	r.mu.Lock()
	r.Cycles = append(r.Cycles, s)
	r.mu.Unlock()
}
