package karaoke

import "time"

// Clock abstracts monotonic time and cancellable timers so throttle,
// cooldown and transition-fallback behavior can be driven
// deterministically in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker

	// AfterFunc runs fn after d unless the returned timer is stopped.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Ticker is a cancellable recurring tick source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is a cancellable single-shot timer.
type Timer interface {
	// Stop cancels the timer and reports whether it had not yet fired.
	Stop() bool
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
