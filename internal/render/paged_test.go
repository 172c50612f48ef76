package render

import (
	"strings"
	"testing"
	"time"

	"github.com/bookkaraoke/kara/internal/karaoke"
	"github.com/bookkaraoke/kara/internal/timing"
)

func pagedChunks() []timing.Chunk {
	return []timing.Chunk{
		{
			{Word: "Hi", Start: 0, End: 0.5},
			{Word: "there", Start: 0.5, End: 1.0},
		},
		{
			{Word: "second", Start: 2, End: 2.5},
			{Word: "chunk", Start: 2.5, End: 3.0},
		},
	}
}

func newTestPaged() (*Paged, *karaoke.ManualClock) {
	clock := karaoke.NewManualClock()
	p := NewPaged(clock)
	p.SetChunks(pagedChunks())
	return p, clock
}

func TestPagedShowChunk(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	if p.Current() != -1 {
		t.Fatalf("Current = %d before any show, want -1", p.Current())
	}
	p.ShowChunk(0, false)
	if p.Current() != 0 {
		t.Fatalf("Current = %d, want 0", p.Current())
	}

	// Out-of-range clears the view.
	p.ShowChunk(7, false)
	if p.Current() != -1 {
		t.Errorf("Current = %d after out-of-range show, want -1", p.Current())
	}
	p.ShowChunk(-2, false)
	if p.Current() != -1 {
		t.Errorf("Current = %d after negative show, want -1", p.Current())
	}
}

func TestPagedWordClassification(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	p.UpdateTime(0.6, 0, 1, 1)

	states := p.States()
	if len(states) != 2 {
		t.Fatalf("got %d spans, want 2", len(states))
	}
	if states[0] != Spoken {
		t.Errorf("word 0 state = %v, want Spoken", states[0])
	}
	if states[1] != Active {
		t.Errorf("word 1 state = %v, want Active", states[1])
	}

	// Seeking backward flips the states the other way.
	p.UpdateTime(0.1, 0, 0, 1)
	states = p.States()
	if states[0] != Active || states[1] != Upcoming {
		t.Errorf("after backward seek states = %v, want [Active Upcoming]", states)
	}
}

func TestPagedTransition(t *testing.T) {
	p, clock := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	p.ShowChunk(1, true)

	// During fade-out the old chunk is still on display and further
	// navigation is ignored.
	if p.Current() != 0 {
		t.Fatalf("Current = %d during fade-out, want 0", p.Current())
	}
	p.ShowChunk(0, false)
	p.ShowChunk(0, true)

	// Ticks after the fade-out duration swap the new chunk in.
	clock.Advance(fadeOutDuration)
	p.UpdateTime(2.1, 1, 0, 1)
	if p.Current() != 1 {
		t.Fatalf("Current = %d after fade-out, want 1", p.Current())
	}

	// Still fading in: navigation remains blocked.
	p.ShowChunk(0, false)
	if p.Current() != 1 {
		t.Fatalf("Current = %d during fade-in, want 1", p.Current())
	}

	clock.Advance(fadeInDuration)
	p.UpdateTime(2.2, 1, 0, 1)

	// Transition over; navigation works again.
	p.ShowChunk(0, false)
	if p.Current() != 0 {
		t.Errorf("Current = %d after transition finished, want 0", p.Current())
	}
}

func TestPagedTransitionFallback(t *testing.T) {
	p, clock := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	p.ShowChunk(1, true)

	// No ticks arrive at all; the fallback timers must finish both
	// phases on their own.
	clock.Advance(transitionFallback)
	if p.Current() != 1 {
		t.Fatalf("Current = %d after fade-out fallback, want 1", p.Current())
	}
	clock.Advance(transitionFallback)

	p.ShowChunk(0, false)
	if p.Current() != 0 {
		t.Errorf("Current = %d after fallback completed transition, want 0", p.Current())
	}
}

func TestPagedNoAnimateFromCleared(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	// With nothing on display there is nothing to fade out; the chunk
	// appears immediately even with animate set.
	p.ShowChunk(1, true)
	if p.Current() != 1 {
		t.Errorf("Current = %d, want 1 (no transition from cleared state)", p.Current())
	}
}

func TestPagedSameChunkNoOp(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	p.UpdateTime(0.6, 0, 1, 1)
	p.ShowChunk(0, true)

	// Re-showing the same chunk must not rebuild spans and lose state.
	if states := p.States(); states[0] != Spoken {
		t.Errorf("state lost on same-chunk show: %v", states)
	}
}

func TestPagedView(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	if got := p.View(); got != "" {
		t.Errorf("unsized View() = %q, want empty", got)
	}

	p.SetSize(40, 10)
	view := p.View()
	if !strings.Contains(view, "Hi") || !strings.Contains(view, "there") {
		t.Errorf("View() missing words: %q", view)
	}
}

func TestPagedSetChunksClears(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	p.SetChunks(pagedChunks())
	if p.Current() != -1 {
		t.Errorf("Current = %d after SetChunks, want -1", p.Current())
	}
}

func TestPagedHighlights(t *testing.T) {
	p, _ := newTestPaged()
	defer p.Destroy()

	p.ShowChunk(0, false)
	p.SetHighlights([]Highlight{
		{Chunk: 0, Word: 1, Current: true},
		{Chunk: 1, Word: 0},  // different chunk, ignored
		{Chunk: 0, Word: 99}, // out of range, ignored
	})
	p.ClearHighlights()
	// Must not panic and must tolerate junk input; the visual effect is
	// covered by the styling path in View.
	p.SetSize(40, 10)
	_ = p.View()
}

func TestPagedDestroyStopsTransitions(t *testing.T) {
	p, clock := newTestPaged()

	p.ShowChunk(0, false)
	p.ShowChunk(1, true)
	p.Destroy()
	p.Destroy()

	clock.Advance(time.Second)
	if p.Current() != 0 {
		t.Errorf("Current = %d after Destroy, want 0 (transition cancelled)", p.Current())
	}
}

func TestBlendToward(t *testing.T) {
	if got := blendToward("#FFD700", "#1A1A2E", 1); got != "#FFD700" {
		t.Errorf("alpha 1 = %q, want unchanged color", got)
	}
	if got := blendToward("#FFD700", "#1A1A2E", 0); !strings.EqualFold(got, "#1A1A2E") {
		t.Errorf("alpha 0 = %q, want background", got)
	}
	if got := blendToward("nonsense", "#1A1A2E", 0.5); got != "nonsense" {
		t.Errorf("bad hex = %q, want passthrough", got)
	}
}
