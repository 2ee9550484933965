package core

import (
	"sync"
	"time"
)

type timer struct {
	deadline time.Time
	ch       chan time.Time
}

// FakeClock is a manually advanced Clock for tests. Every wait requested
// through After is recorded in Waits.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*timer
	waits   []time.Duration
	waiting chan struct{}
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start, waiting: make(chan struct{}, 64)}
}

// Now just returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After creates a timer that fires when fake time reaches now + d
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &timer{
		deadline: c.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.waits = append(c.waits, d)
	c.timers = append(c.timers, t)

	select {
	case c.waiting <- struct{}{}:
	default:
	}
	return t.ch
}

// Waiting is signalled every time After is called.
func (c *FakeClock) Waiting() <-chan struct{} {
	return c.waiting
}

// Waits returns the durations passed to After so far.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

// Add advances fake time and fires timers whose deadlines have passed
func (c *FakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	now := c.now

	var remaining []*timer

	for _, t := range c.timers {
		if !t.deadline.After(now) {
			// timer has expired → fire it
			t.ch <- now
		} else {
			// still pending
			remaining = append(remaining, t)
		}
	}

	c.timers = remaining
	c.mu.Unlock()
}
