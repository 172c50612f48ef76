// Package karaoke implements the playback synchronization engine: it owns
// the chunk/word timing data, polls an audio TimeSource on a frame ticker,
// and maps continuous playback time onto the active chunk, active word and
// fade weight, emitting change events for renderers and the UI.
package karaoke

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bookkaraoke/kara/internal/timing"
)

// TimeSource is the host media primitive the engine drives: a playable
// resource with a readable and writable position. Implementations live in
// internal/audio; tests inject a deterministic double.
type TimeSource interface {
	// Position returns the current playback position in seconds.
	Position() float64

	// Duration returns the total length in seconds, 0 if unknown.
	Duration() float64

	// Seek moves the play position. Callers pass already-clamped values.
	Seek(t float64)

	// Play starts or resumes playback.
	Play() error

	// Pause suspends playback, keeping the position.
	Pause()

	// SetVolume sets the output volume in [0,1].
	SetVolume(v float64)

	// SetRate sets the playback rate multiplier.
	SetRate(r float64)

	// Ended reports whether playback ran past the end of the audio.
	Ended() bool

	// Close releases the underlying resource. Must be idempotent.
	Close() error
}

// Loader opens a playable resource, typically by fetching and decoding an
// audio file.
type Loader func(ctx context.Context) (TimeSource, error)

// Config tunes the engine's sync windows and tick rate. Zero fields take
// defaults.
type Config struct {
	// PreRoll extends each chunk's window backward in time (seconds),
	// fading the chunk in before its first word.
	PreRoll float64

	// PostRoll extends each chunk's window forward (seconds), fading it
	// out after its last word.
	PostRoll float64

	// LastChunkTail replaces PostRoll for the final chunk so the last
	// text does not fade out while trailing audio is still playing.
	LastChunkTail float64

	// TickInterval is the frame ticker period.
	TickInterval time.Duration

	// Clock supplies the ticker; nil means the system clock.
	Clock Clock
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		PreRoll:       0.3,
		PostRoll:      0.45,
		LastChunkTail: 60,
		TickInterval:  16 * time.Millisecond,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PreRoll == 0 {
		c.PreRoll = d.PreRoll
	}
	if c.PostRoll == 0 {
		c.PostRoll = d.PostRoll
	}
	if c.LastChunkTail == 0 {
		c.LastChunkTail = d.LastChunkTail
	}
	if c.TickInterval == 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	return c
}

// Snapshot is the complete per-tick sync state.
type Snapshot struct {
	Time       float64
	Progress   float64
	ChunkIndex int
	WordIndex  int
	FadeAlpha  float64
}

// Engine maps playback time onto chunk/word indices and fade weight. It is
// the single writer of that state; renderers and search only read event
// payloads and issue commands back in.
type Engine struct {
	cfg Config

	mu        sync.Mutex
	source    TimeSource
	chunks    []timing.Chunk
	ranges    []timing.ChunkRange
	snap      Snapshot
	playing   bool
	destroyed bool

	// Frame ticker; at most one loop is ever outstanding.
	ticker Ticker
	stopCh chan struct{}

	listeners []Listener
}

// New creates an engine with no source and no timestamps.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:  cfg.withDefaults(),
		snap: Snapshot{ChunkIndex: -1, WordIndex: -1, FadeAlpha: 1},
	}
}

// Notify registers a listener for engine events. Listeners run
// synchronously on the goroutine that triggered the event.
func (e *Engine) Notify(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// LoadAudio opens an audio resource via the loader. It fails with a
// wrapped ErrLoad if the resource cannot be fetched or decoded, and emits
// LoadedEvent once duration metadata is available. Any previous source is
// closed.
func (e *Engine) LoadAudio(ctx context.Context, load Loader) error {
	src, err := load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		src.Close()
		return ErrDestroyed
	}
	old := e.source
	e.source = src
	e.snap = Snapshot{ChunkIndex: -1, WordIndex: -1, FadeAlpha: 1}
	dur := src.Duration()
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	e.emit(LoadedEvent{Duration: dur})
	return nil
}

// SetTimestamps replaces the chunk timing data wholesale and precomputes
// chunk ranges.
func (e *Engine) SetTimestamps(chunks []timing.Chunk) {
	e.mu.Lock()
	e.chunks = chunks
	e.ranges = timing.Ranges(chunks)
	e.mu.Unlock()
	e.emit(TimestampsLoadedEvent{Chunks: len(chunks), Words: timing.WordCount(chunks)})
}

// Play starts playback and the frame ticker.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if e.source == nil {
		e.mu.Unlock()
		return ErrNoSource
	}
	if err := e.source.Play(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("starting playback: %w", err)
	}
	e.playing = true
	t := e.source.Position()
	e.startTickerLocked()
	e.mu.Unlock()

	e.emit(PlayEvent{Time: t})
	return nil
}

// Pause suspends playback and stops the frame ticker.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.source == nil || !e.playing {
		e.mu.Unlock()
		return
	}
	e.source.Pause()
	e.playing = false
	t := e.source.Position()
	e.stopTickerLocked()
	e.mu.Unlock()

	e.emit(PauseEvent{Time: t})
}

// Toggle plays when paused and pauses when playing.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	playing := e.playing
	e.mu.Unlock()
	if playing {
		e.Pause()
		return nil
	}
	return e.Play()
}

// Playing reports whether the engine is currently playing.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Seek clamps t to [0, duration], moves the source, and forces an
// immediate recomputation rather than waiting for the next tick. Seeking
// never errors.
func (e *Engine) Seek(t float64) {
	e.mu.Lock()
	if e.destroyed || e.source == nil {
		e.mu.Unlock()
		return
	}
	if t < 0 {
		t = 0
	}
	if dur := e.source.Duration(); dur > 0 && t > dur {
		t = dur
	}
	e.source.Seek(t)
	e.mu.Unlock()

	e.emit(SeekEvent{Time: t})
	e.step()
}

// SeekToChunk seeks to the start of the given chunk. Out-of-range or
// empty chunks are ignored.
func (e *Engine) SeekToChunk(index int) {
	e.mu.Lock()
	if index < 0 || index >= len(e.chunks) || len(e.chunks[index]) == 0 {
		e.mu.Unlock()
		return
	}
	start := e.ranges[index].Start
	e.mu.Unlock()
	e.Seek(start)
}

// SetVolume sets output volume, clamped to [0,1].
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source != nil {
		e.source.SetVolume(v)
	}
}

// SetPlaybackRate sets the playback rate multiplier.
func (e *Engine) SetPlaybackRate(r float64) {
	if r <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source != nil {
		e.source.SetRate(r)
	}
}

// Snapshot returns the last computed sync state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Chunks returns the current chunk data. The slice is replaced wholesale
// on SetTimestamps and never mutated in place, so reading it is safe.
func (e *Engine) Chunks() []timing.Chunk {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chunks
}

// Duration returns the source's duration, 0 if no source is loaded.
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == nil {
		return 0
	}
	return e.source.Duration()
}

// Destroy stops the frame ticker and releases the audio source. It is
// idempotent and safe to call before LoadAudio.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.playing = false
	e.stopTickerLocked()
	src := e.source
	e.source = nil
	e.mu.Unlock()

	if src != nil {
		src.Close()
	}
}

// startTickerLocked launches the frame loop, stopping any previous one
// first so at most one loop is ever outstanding.
func (e *Engine) startTickerLocked() {
	e.stopTickerLocked()
	e.ticker = e.cfg.Clock.NewTicker(e.cfg.TickInterval)
	e.stopCh = make(chan struct{})
	go e.tickLoop(e.ticker, e.stopCh)
}

// stopTickerLocked halts the frame loop. Safe to call when not running.
func (e *Engine) stopTickerLocked() {
	if e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
	}
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

func (e *Engine) tickLoop(ticker Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			e.step()
		}
	}
}

// step runs one tick: read the position, compute a complete snapshot,
// store it, then emit events. Events are emitted outside the lock so a
// listener may re-enter the engine.
func (e *Engine) step() {
	e.mu.Lock()
	if e.destroyed || e.source == nil {
		e.mu.Unlock()
		return
	}
	t := e.source.Position()
	snap := e.computeLocked(t)
	prev := e.snap
	e.snap = snap

	ended := e.playing && e.source.Ended()
	if ended {
		e.playing = false
		e.stopTickerLocked()
	}
	e.mu.Unlock()

	if snap.ChunkIndex != prev.ChunkIndex {
		e.emit(ChunkChangeEvent{
			ChunkIndex:         snap.ChunkIndex,
			PreviousChunkIndex: prev.ChunkIndex,
			FadeAlpha:          snap.FadeAlpha,
		})
	}
	if snap.WordIndex != prev.WordIndex {
		e.emit(WordChangeEvent{WordIndex: snap.WordIndex, ChunkIndex: snap.ChunkIndex})
	}
	e.emit(TimeUpdateEvent{
		Time:       snap.Time,
		Progress:   snap.Progress,
		ChunkIndex: snap.ChunkIndex,
		WordIndex:  snap.WordIndex,
		FadeAlpha:  snap.FadeAlpha,
	})
	if ended {
		e.emit(EndedEvent{})
	}
}

// computeLocked maps a playback time to the active chunk, word and fade
// weight. Forward scan with early exit; when extended windows overlap the
// first match wins (inherited behavior, see DESIGN.md).
func (e *Engine) computeLocked(t float64) Snapshot {
	snap := Snapshot{Time: t, ChunkIndex: -1, WordIndex: -1, FadeAlpha: 1}
	if dur := e.source.Duration(); dur > 0 {
		snap.Progress = t / dur
		if snap.Progress < 0 {
			snap.Progress = 0
		} else if snap.Progress > 1 {
			snap.Progress = 1
		}
	}

	for i, r := range e.ranges {
		if len(e.chunks[i]) == 0 {
			// An empty chunk's zero range never matches real time.
			continue
		}
		tail := e.cfg.PostRoll
		if i == len(e.ranges)-1 {
			tail = e.cfg.LastChunkTail
		}
		if t < r.Start-e.cfg.PreRoll || t > r.End+tail {
			continue
		}
		snap.ChunkIndex = i
		switch {
		case t < r.Start:
			snap.FadeAlpha = 1 - (r.Start-t)/e.cfg.PreRoll
		case t > r.End:
			snap.FadeAlpha = 1 - (t-r.End)/tail
		default:
			snap.FadeAlpha = 1
		}
		if snap.FadeAlpha < 0 {
			snap.FadeAlpha = 0
		}
		break
	}

	if snap.ChunkIndex >= 0 {
		// The active word is the most recently started word; once speech
		// has started in the chunk it never reverts to -1, and past the
		// last word's end it sticks to the last word.
		chunk := e.chunks[snap.ChunkIndex]
		for w := range chunk {
			if t < chunk[w].Start {
				break
			}
			snap.WordIndex = w
		}
	}
	return snap
}

// emit delivers an event to all listeners, synchronously and in
// registration order.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	listeners := e.listeners
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}
