package testutil

import (
	"sync"
	"time"
)

// ManualTimer is a timer created by ManualScheduler. It only fires when the
// test calls Fire.
type ManualTimer struct {
	Delay time.Duration

	s       *ManualScheduler
	fn      func()
	stopped bool
	fired   bool
}

// Stop prevents the timer from firing. It reports whether the timer was
// still pending.
func (t *ManualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// ManualScheduler records AfterFunc calls instead of starting real timers.
type ManualScheduler struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// AfterFunc records fn to be run after d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &ManualTimer{Delay: d, s: s, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Delays returns the delay of every timer scheduled so far, in order.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.Delay
	}
	return out
}

// Pending returns the number of timers that are neither stopped nor fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FireNext runs the oldest pending timer on the calling goroutine.
// It reports whether a timer was fired.
func (s *ManualScheduler) FireNext() bool {
	s.mu.Lock()
	var next *ManualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		return false
	}
	next.fired = true
	s.mu.Unlock()

	next.fn()
	return true
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
