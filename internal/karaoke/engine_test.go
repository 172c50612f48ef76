package karaoke

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bookkaraoke/kara/internal/audio"
	"github.com/bookkaraoke/kara/internal/timing"
)

// recorder collects engine events for assertions. Listeners run
// synchronously, so a mutex is enough.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(match func(Event) bool) int {
	n := 0
	for _, ev := range r.all() {
		if match(ev) {
			n++
		}
	}
	return n
}

func testConfig(clock Clock) Config {
	return Config{
		PreRoll:       0.3,
		PostRoll:      0.45,
		LastChunkTail: 2,
		TickInterval:  16 * time.Millisecond,
		Clock:         clock,
	}
}

// newTestEngine wires an engine to a mock source with the given chunks
// loaded. The returned engine uses a manual clock, so nothing advances
// unless the test drives it.
func newTestEngine(t *testing.T, duration float64, chunks []timing.Chunk) (*Engine, *audio.MockSource, *recorder) {
	t.Helper()
	src := audio.NewMockSource(duration)
	e := New(testConfig(NewManualClock()))
	rec := &recorder{}
	e.Notify(rec.listen)
	if err := e.LoadAudio(context.Background(), func(context.Context) (TimeSource, error) {
		return src, nil
	}); err != nil {
		t.Fatalf("LoadAudio: %v", err)
	}
	e.SetTimestamps(chunks)
	t.Cleanup(e.Destroy)
	return e, src, rec
}

func twoWordChunk() []timing.Chunk {
	return []timing.Chunk{
		{
			{Word: "Hi", Start: 0, End: 0.5},
			{Word: "there", Start: 0.5, End: 1.0},
		},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputePreRollFade(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())

	// 0.1s before the chunk's first word: the chunk is active and fading
	// in, but no word has started yet.
	src.SetPosition(-0.1)
	e.step()

	snap := e.Snapshot()
	if snap.ChunkIndex != 0 {
		t.Fatalf("ChunkIndex = %d, want 0", snap.ChunkIndex)
	}
	if snap.WordIndex != -1 {
		t.Errorf("WordIndex = %d, want -1", snap.WordIndex)
	}
	want := 1 - 0.1/0.3
	if math.Abs(snap.FadeAlpha-want) > 1e-6 {
		t.Errorf("FadeAlpha = %v, want %v", snap.FadeAlpha, want)
	}
	if snap.Progress != 0 {
		t.Errorf("Progress = %v, want 0 for negative time", snap.Progress)
	}
}

func TestComputeActiveWord(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())

	src.SetPosition(0.6)
	e.step()

	snap := e.Snapshot()
	if snap.ChunkIndex != 0 || snap.WordIndex != 1 {
		t.Errorf("got chunk=%d word=%d, want chunk=0 word=1", snap.ChunkIndex, snap.WordIndex)
	}
	if snap.FadeAlpha != 1 {
		t.Errorf("FadeAlpha = %v, want 1 inside the core range", snap.FadeAlpha)
	}
	if !near(snap.Progress, 0.06) {
		t.Errorf("Progress = %v, want 0.06", snap.Progress)
	}
}

func TestWordPersistsThroughGap(t *testing.T) {
	chunks := []timing.Chunk{
		{
			{Word: "slow", Start: 0, End: 0.4},
			{Word: "speech", Start: 0.6, End: 1.0},
		},
	}
	e, src, _ := newTestEngine(t, 10, chunks)

	// In the silence between words the earlier word stays active.
	src.SetPosition(0.5)
	e.step()
	if snap := e.Snapshot(); snap.WordIndex != 0 {
		t.Errorf("WordIndex = %d in inter-word gap, want 0", snap.WordIndex)
	}
}

func TestWordSticksAfterChunkEnd(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())

	// Past the last word's end but inside the tail window.
	src.SetPosition(1.2)
	e.step()

	snap := e.Snapshot()
	if snap.ChunkIndex != 0 || snap.WordIndex != 1 {
		t.Errorf("got chunk=%d word=%d, want chunk=0 word=1", snap.ChunkIndex, snap.WordIndex)
	}
	want := 1 - 0.2/2 // last chunk uses the long tail
	if math.Abs(snap.FadeAlpha-want) > 1e-6 {
		t.Errorf("FadeAlpha = %v, want %v", snap.FadeAlpha, want)
	}
}

func TestNoChunkOutsideAllWindows(t *testing.T) {
	chunks := []timing.Chunk{
		{{Word: "one", Start: 0, End: 1}},
		{{Word: "two", Start: 5, End: 6}},
	}
	e, src, _ := newTestEngine(t, 10, chunks)

	src.SetPosition(3)
	e.step()

	snap := e.Snapshot()
	if snap.ChunkIndex != -1 || snap.WordIndex != -1 {
		t.Errorf("got chunk=%d word=%d, want -1/-1", snap.ChunkIndex, snap.WordIndex)
	}
	if snap.FadeAlpha != 1 {
		t.Errorf("FadeAlpha = %v, want 1 when no chunk is active", snap.FadeAlpha)
	}
}

func TestOverlappingWindowsFirstMatchWins(t *testing.T) {
	// The post-roll of chunk 0 overlaps the pre-roll of chunk 1. The scan
	// keeps the earlier chunk until its extended window truly ends.
	chunks := []timing.Chunk{
		{{Word: "one", Start: 0, End: 1}},
		{{Word: "two", Start: 1.2, End: 2}},
	}
	e, src, _ := newTestEngine(t, 10, chunks)

	src.SetPosition(1.1)
	e.step()
	if snap := e.Snapshot(); snap.ChunkIndex != 0 {
		t.Errorf("ChunkIndex = %d in overlap, want 0", snap.ChunkIndex)
	}
}

func TestEmptyChunkNeverMatches(t *testing.T) {
	chunks := []timing.Chunk{
		{},
		{{Word: "real", Start: 0, End: 1}},
	}
	e, src, _ := newTestEngine(t, 10, chunks)

	src.SetPosition(0)
	e.step()
	if snap := e.Snapshot(); snap.ChunkIndex != 1 {
		t.Errorf("ChunkIndex = %d, want 1 (empty chunk skipped)", snap.ChunkIndex)
	}
}

func TestChunkChangeEmittedOncePerTransition(t *testing.T) {
	e, src, rec := newTestEngine(t, 10, twoWordChunk())

	src.SetPosition(0.2)
	e.step()
	e.step()
	e.step()

	changes := rec.count(func(ev Event) bool {
		_, ok := ev.(ChunkChangeEvent)
		return ok
	})
	if changes != 1 {
		t.Errorf("got %d ChunkChangeEvents for one transition, want 1", changes)
	}
	updates := rec.count(func(ev Event) bool {
		_, ok := ev.(TimeUpdateEvent)
		return ok
	})
	if updates != 3 {
		t.Errorf("got %d TimeUpdateEvents for three ticks, want 3", updates)
	}
}

func TestWordChangeOnlyOnChange(t *testing.T) {
	e, src, rec := newTestEngine(t, 10, twoWordChunk())

	src.SetPosition(0.1)
	e.step()
	src.SetPosition(0.2)
	e.step()
	src.SetPosition(0.6)
	e.step()

	words := rec.count(func(ev Event) bool {
		_, ok := ev.(WordChangeEvent)
		return ok
	})
	if words != 2 {
		t.Errorf("got %d WordChangeEvents, want 2 (enter word 0, enter word 1)", words)
	}
}

func TestSeekClamps(t *testing.T) {
	e, src, rec := newTestEngine(t, 10, twoWordChunk())

	e.Seek(-5)
	e.Seek(100)

	seeks := src.Seeks()
	if len(seeks) != 2 || seeks[0] != 0 || seeks[1] != 10 {
		t.Fatalf("source seeks = %v, want [0 10]", seeks)
	}
	var seekTimes []float64
	for _, ev := range rec.all() {
		if s, ok := ev.(SeekEvent); ok {
			seekTimes = append(seekTimes, s.Time)
		}
	}
	if len(seekTimes) != 2 || seekTimes[0] != 0 || seekTimes[1] != 10 {
		t.Errorf("SeekEvent times = %v, want [0 10]", seekTimes)
	}
}

func TestSeekRecomputesImmediately(t *testing.T) {
	e, _, _ := newTestEngine(t, 10, twoWordChunk())

	e.Seek(0.6)
	if snap := e.Snapshot(); snap.WordIndex != 1 {
		t.Errorf("WordIndex = %d right after seek, want 1", snap.WordIndex)
	}
}

func TestSeekToChunk(t *testing.T) {
	chunks := []timing.Chunk{
		{{Word: "one", Start: 0, End: 1}},
		{{Word: "two", Start: 5, End: 6}},
		{},
	}
	e, src, _ := newTestEngine(t, 10, chunks)

	e.SeekToChunk(1)
	if seeks := src.Seeks(); len(seeks) != 1 || seeks[0] != 5 {
		t.Fatalf("seeks = %v, want [5]", seeks)
	}

	// Out-of-range and empty targets are ignored.
	e.SeekToChunk(-1)
	e.SeekToChunk(2)
	e.SeekToChunk(99)
	if seeks := src.Seeks(); len(seeks) != 1 {
		t.Errorf("seeks = %v after bad targets, want just [5]", seeks)
	}
}

func TestPlayPauseToggle(t *testing.T) {
	e, _, rec := newTestEngine(t, 10, twoWordChunk())

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !e.Playing() {
		t.Fatal("Playing() = false after Play")
	}
	e.Pause()
	if e.Playing() {
		t.Fatal("Playing() = true after Pause")
	}
	if err := e.Toggle(); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !e.Playing() {
		t.Fatal("Toggle did not resume")
	}

	plays := rec.count(func(ev Event) bool { _, ok := ev.(PlayEvent); return ok })
	pauses := rec.count(func(ev Event) bool { _, ok := ev.(PauseEvent); return ok })
	if plays != 2 || pauses != 1 {
		t.Errorf("got %d plays, %d pauses, want 2 and 1", plays, pauses)
	}
}

func TestPlayWithoutSource(t *testing.T) {
	e := New(testConfig(NewManualClock()))
	defer e.Destroy()
	if err := e.Play(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Play() error = %v, want ErrNoSource", err)
	}
}

func TestPlaySourceFailure(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())
	src.FailPlay(errors.New("device busy"))
	if err := e.Play(); err == nil {
		t.Fatal("Play() succeeded with a failing source")
	}
	if e.Playing() {
		t.Error("Playing() = true after failed Play")
	}
}

func TestLoadAudioFailureWrapsErrLoad(t *testing.T) {
	e := New(testConfig(NewManualClock()))
	defer e.Destroy()
	err := e.LoadAudio(context.Background(), func(context.Context) (TimeSource, error) {
		return nil, errors.New("404")
	})
	if !errors.Is(err, ErrLoad) {
		t.Errorf("LoadAudio error = %v, want wrapped ErrLoad", err)
	}
}

func TestLoadAudioReplacesSource(t *testing.T) {
	e, first, rec := newTestEngine(t, 10, twoWordChunk())

	second := audio.NewMockSource(20)
	if err := e.LoadAudio(context.Background(), func(context.Context) (TimeSource, error) {
		return second, nil
	}); err != nil {
		t.Fatalf("LoadAudio: %v", err)
	}
	if first.CloseCount() != 1 {
		t.Errorf("old source closed %d times, want 1", first.CloseCount())
	}
	if e.Duration() != 20 {
		t.Errorf("Duration = %v, want 20", e.Duration())
	}

	loads := 0
	for _, ev := range rec.all() {
		if l, ok := ev.(LoadedEvent); ok {
			loads++
			if loads == 2 && l.Duration != 20 {
				t.Errorf("second LoadedEvent duration = %v, want 20", l.Duration)
			}
		}
	}
	if loads != 2 {
		t.Errorf("got %d LoadedEvents, want 2", loads)
	}
}

func TestEnded(t *testing.T) {
	e, src, rec := newTestEngine(t, 10, twoWordChunk())

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	src.SetPosition(10)
	e.step()

	if e.Playing() {
		t.Error("Playing() = true after the end of audio")
	}
	ends := rec.count(func(ev Event) bool { _, ok := ev.(EndedEvent); return ok })
	if ends != 1 {
		t.Errorf("got %d EndedEvents, want 1", ends)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())

	e.Destroy()
	e.Destroy()
	if src.CloseCount() != 1 {
		t.Errorf("source closed %d times, want 1", src.CloseCount())
	}
	if err := e.Play(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Play after Destroy = %v, want ErrDestroyed", err)
	}
	e.Seek(5)
	if seeks := src.Seeks(); len(seeks) != 0 {
		t.Errorf("Seek after Destroy reached the source: %v", seeks)
	}
}

func TestDestroyBeforeLoad(t *testing.T) {
	e := New(testConfig(NewManualClock()))
	e.Destroy() // must not panic
}

func TestListenerMayReenter(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())

	// A handler that seeks on chunk entry must not deadlock; snapshots
	// are stored before events go out.
	var once sync.Once
	e.Notify(func(ev Event) {
		if _, ok := ev.(ChunkChangeEvent); ok {
			once.Do(func() { e.Seek(0.6) })
		}
	})

	src.SetPosition(0.1)
	e.step()

	if snap := e.Snapshot(); snap.WordIndex != 1 {
		t.Errorf("WordIndex = %d after re-entrant seek, want 1", snap.WordIndex)
	}
}

func TestTickerDrivesSteps(t *testing.T) {
	clock := NewManualClock()
	src := audio.NewMockSource(10)
	e := New(testConfig(clock))
	rec := &recorder{}
	e.Notify(rec.listen)
	if err := e.LoadAudio(context.Background(), func(context.Context) (TimeSource, error) {
		return src, nil
	}); err != nil {
		t.Fatalf("LoadAudio: %v", err)
	}
	e.SetTimestamps(twoWordChunk())
	defer e.Destroy()

	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	src.SetPosition(0.6)
	clock.Advance(16 * time.Millisecond)

	// The tick loop runs on its own goroutine; wait for it to observe
	// the tick.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Snapshot().WordIndex == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("ticker never drove a step; snapshot = %+v", e.Snapshot())
}

func TestVolumeAndRateForwarding(t *testing.T) {
	e, src, _ := newTestEngine(t, 10, twoWordChunk())

	e.SetVolume(1.5)
	if src.Volume() != 1 {
		t.Errorf("volume = %v, want clamped to 1", src.Volume())
	}
	e.SetVolume(-0.5)
	if src.Volume() != 0 {
		t.Errorf("volume = %v, want clamped to 0", src.Volume())
	}
	e.SetPlaybackRate(1.25)
	if src.Rate() != 1.25 {
		t.Errorf("rate = %v, want 1.25", src.Rate())
	}
	e.SetPlaybackRate(0) // ignored
	if src.Rate() != 1.25 {
		t.Errorf("rate = %v after SetPlaybackRate(0), want unchanged", src.Rate())
	}
}
