package karaoke

// Events emitted by the Engine. Delivery is synchronous: the engine
// computes and stores a complete snapshot before any listener runs, so a
// listener may safely re-enter the engine (for example seeking from a
// ChunkChangeEvent handler).

// Event is a notification emitted by the Engine.
type Event interface{ event() }

// LoadedEvent fires once an audio source's duration metadata is known.
type LoadedEvent struct {
	Duration float64 // total narration length in seconds
}

// TimestampsLoadedEvent fires when chunk timing data is replaced.
type TimestampsLoadedEvent struct {
	Chunks int // number of chunks
	Words  int // total word count
}

// PlayEvent fires when playback starts or resumes.
type PlayEvent struct {
	Time float64 // position at which playback started
}

// PauseEvent fires when playback is paused.
type PauseEvent struct {
	Time float64 // position at which playback paused
}

// EndedEvent fires when the source reports end of audio.
type EndedEvent struct{}

// SeekEvent fires after an explicit seek, before the recomputed state
// events for the new position.
type SeekEvent struct {
	Time float64 // clamped seek target
}

// TimeUpdateEvent fires unconditionally on every tick.
type TimeUpdateEvent struct {
	Time       float64
	Progress   float64 // Time / Duration, 0 if duration unknown
	ChunkIndex int     // active chunk, -1 outside every window
	WordIndex  int     // active word within the chunk, -1 if none
	FadeAlpha  float64 // 0..1 transition weight for the active chunk
}

// ChunkChangeEvent fires only when the computed chunk index differs from
// the previous tick's.
type ChunkChangeEvent struct {
	ChunkIndex         int
	PreviousChunkIndex int
	FadeAlpha          float64
}

// WordChangeEvent fires only when the computed word index changes.
type WordChangeEvent struct {
	WordIndex  int
	ChunkIndex int
}

func (LoadedEvent) event()           {}
func (TimestampsLoadedEvent) event() {}
func (PlayEvent) event()             {}
func (PauseEvent) event()            {}
func (EndedEvent) event()            {}
func (SeekEvent) event()             {}
func (TimeUpdateEvent) event()       {}
func (ChunkChangeEvent) event()      {}
func (WordChangeEvent) event()       {}

// Listener receives engine events.
type Listener func(Event)
