package karaoke

import (
	"sync"
	"time"
)

// ManualClock is a deterministic Clock for tests. Time only moves when
// Advance is called; due timers fire synchronously inside Advance, in
// deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*manualTimer
	tickers []*manualTicker
}

// NewManualClock creates a manual clock starting at an arbitrary epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(1000, 0)}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward, firing timers and tickers that come
// due along the way.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		next := c.nextTimerLocked(target)
		if next == nil {
			break
		}
		c.now = next.when
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.now = target
	for _, tk := range c.tickers {
		tk.catchUp(target)
	}
	c.mu.Unlock()
}

// nextTimerLocked returns the earliest unfired timer due at or before
// target, or nil.
func (c *ManualClock) nextTimerLocked(target time.Time) *manualTimer {
	var next *manualTimer
	for _, t := range c.timers {
		if t.fired || t.stopped || t.when.After(target) {
			continue
		}
		if next == nil || t.when.Before(next.when) {
			next = t
		}
	}
	return next
}

// AfterFunc schedules fn to run when the clock is advanced past d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{when: c.now.Add(d), fn: fn, clock: c}
	c.timers = append(c.timers, t)
	return t
}

// NewTicker returns a ticker driven by Advance. Multiple intervals
// elapsed in a single Advance collapse into at most one pending tick,
// which matches a frame scheduler under load.
func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &manualTicker{interval: d, next: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, tk)
	return tk
}

type manualTimer struct {
	when    time.Time
	fn      func()
	fired   bool
	stopped bool
	clock   *ManualClock
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.fired && !t.stopped
	t.stopped = true
	return active
}

type manualTicker struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// catchUp delivers a tick if the target time passed the next deadline.
func (t *manualTicker) catchUp(target time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || target.Before(t.next) {
		return
	}
	for !t.next.After(target) {
		t.next = t.next.Add(t.interval)
	}
	select {
	case t.ch <- target:
	default:
	}
}
