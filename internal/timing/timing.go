// Package timing holds the word-level timing data model for a karaoke
// project: chunks of timed words, derived chunk ranges, chapter markers,
// and the formatting map applied at render time.
package timing

// WordTiming pairs a word with the interval during which it is spoken.
// Times are in seconds from the start of the narration and satisfy
// Start <= End; within a chunk they are non-decreasing.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Chunk is an ordered group of consecutively narrated words that is
// displayed together. Chunks are immutable once delivered; a project's
// chunk list is only ever replaced wholesale.
type Chunk []WordTiming

// ChunkRange is the time span covered by a chunk's words. The zero value
// is used for empty chunks and never matches any real playback time.
type ChunkRange struct {
	Start float64
	End   float64
}

// Range returns the chunk's time span, or the zero range for an empty chunk.
func (c Chunk) Range() ChunkRange {
	if len(c) == 0 {
		return ChunkRange{}
	}
	return ChunkRange{Start: c[0].Start, End: c[len(c)-1].End}
}

// Ranges precomputes the range of every chunk.
func Ranges(chunks []Chunk) []ChunkRange {
	ranges := make([]ChunkRange, len(chunks))
	for i, c := range chunks {
		ranges[i] = c.Range()
	}
	return ranges
}

// WordCount returns the total number of words across all chunks.
func WordCount(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}

// Chapter marks the chunk at which a new chapter begins.
type Chapter struct {
	Chunk int    `json:"chunk"`
	Title string `json:"title"`
}
