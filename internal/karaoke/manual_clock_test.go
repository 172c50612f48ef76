package karaoke

import (
	"testing"
	"time"
)

func TestManualClockAfterFunc(t *testing.T) {
	c := NewManualClock()
	fired := 0
	c.AfterFunc(100*time.Millisecond, func() { fired++ })

	c.Advance(50 * time.Millisecond)
	if fired != 0 {
		t.Fatal("timer fired early")
	}
	c.Advance(50 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d after further advance, want 1", fired)
	}
}

func TestManualClockTimerStop(t *testing.T) {
	c := NewManualClock()
	fired := false
	timer := c.AfterFunc(100*time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false for a pending timer")
	}
	c.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("Stop() = true for an already stopped timer")
	}
}

func TestManualClockTimersFireInDeadlineOrder(t *testing.T) {
	c := NewManualClock()
	var order []int
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, 2) })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, 1) })

	c.Advance(time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("fire order = %v, want [1 2]", order)
	}
}

func TestManualClockTickerCollapses(t *testing.T) {
	c := NewManualClock()
	tk := c.NewTicker(10 * time.Millisecond)
	defer tk.Stop()

	// Many elapsed intervals collapse into a single pending tick.
	c.Advance(100 * time.Millisecond)
	select {
	case <-tk.C():
	default:
		t.Fatal("no tick pending after advancing past the interval")
	}
	select {
	case <-tk.C():
		t.Fatal("more than one tick pending")
	default:
	}
}

func TestManualClockTickerStop(t *testing.T) {
	c := NewManualClock()
	tk := c.NewTicker(10 * time.Millisecond)
	tk.Stop()
	c.Advance(100 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestManualClockNow(t *testing.T) {
	c := NewManualClock()
	start := c.Now()
	c.Advance(5 * time.Second)
	if got := c.Now().Sub(start); got != 5*time.Second {
		t.Errorf("advanced by %v, want 5s", got)
	}
}
