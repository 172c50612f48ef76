// Package search queries the transcript's timing data and commands
// seeks and chunk shows back into the engine and the active renderer.
package search

import (
	"strings"
	"sync"

	"github.com/bookkaraoke/kara/internal/render"
	"github.com/bookkaraoke/kara/internal/timing"
)

// seekLeadIn is subtracted from a match's start time so the word is
// heard from its beginning.
const seekLeadIn = 0.3

// Match is one query hit, ordered by (Chunk, Word).
type Match struct {
	Chunk int
	Word  int
	Start float64
}

// Seeker is the engine surface the index commands. The engine clamps.
type Seeker interface {
	Seek(t float64)
}

// Highlighter is the renderer surface the index commands.
type Highlighter interface {
	ShowChunk(index int, animate bool)
	SetHighlights(matches []render.Highlight)
	ClearHighlights()
}

// Index scans chunk data on demand. It owns no persistent state beyond
// the last computed match list, which every new query invalidates.
type Index struct {
	mu sync.Mutex

	chunks   []timing.Chunk
	engine   Seeker
	renderer Highlighter

	matches []Match
	cursor  int
}

// New creates an index commanding the given engine.
func New(engine Seeker) *Index {
	return &Index{engine: engine, cursor: -1}
}

// SetChunks replaces the data the index scans.
func (x *Index) SetChunks(chunks []timing.Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = chunks
	x.matches = nil
	x.cursor = -1
}

// SetRenderer points the index at the active renderer.
func (x *Index) SetRenderer(r Highlighter) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.renderer = r
}

// RunQuery matches q case-insensitively as a substring against every
// word, in (chunk, word) order. A blank query clears all matches and
// highlight state. The scan is O(total words), fine for a single
// narration's transcript; nothing is cached across queries.
func (x *Index) RunQuery(q string) []Match {
	x.mu.Lock()
	q = strings.ToLower(strings.TrimSpace(q))
	x.matches = nil
	x.cursor = -1
	if q == "" {
		r := x.renderer
		x.mu.Unlock()
		if r != nil {
			r.ClearHighlights()
		}
		return nil
	}
	for ci, chunk := range x.chunks {
		for wi, wt := range chunk {
			if strings.Contains(strings.ToLower(wt.Word), q) {
				x.matches = append(x.matches, Match{Chunk: ci, Word: wi, Start: wt.Start})
			}
		}
	}
	matches := x.matches
	x.mu.Unlock()
	return matches
}

// Matches returns the last computed match list.
func (x *Index) Matches() []Match {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.matches
}

// Cursor returns the current match index, -1 if none.
func (x *Index) Cursor() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cursor
}

// Navigate moves the current-match cursor by direction (+1/-1) with
// wrap-around in both directions, then goes to it. No-op without
// matches.
func (x *Index) Navigate(direction int) {
	x.mu.Lock()
	n := len(x.matches)
	if n == 0 {
		x.mu.Unlock()
		return
	}
	if x.cursor < 0 {
		if direction < 0 {
			x.cursor = n - 1
		} else {
			x.cursor = 0
		}
	} else {
		x.cursor = ((x.cursor+direction)%n + n) % n
	}
	i := x.cursor
	x.mu.Unlock()
	x.GoToMatch(i)
}

// GoToMatch seeks slightly before the match so the word is heard from
// its start, shows the containing chunk, and highlights every match in
// that chunk with exactly match i marked current.
func (x *Index) GoToMatch(i int) {
	x.mu.Lock()
	if i < 0 || i >= len(x.matches) {
		x.mu.Unlock()
		return
	}
	x.cursor = i
	m := x.matches[i]
	var inChunk []render.Highlight
	for j, other := range x.matches {
		if other.Chunk != m.Chunk {
			continue
		}
		inChunk = append(inChunk, render.Highlight{
			Chunk:   other.Chunk,
			Word:    other.Word,
			Current: j == i,
		})
	}
	engine := x.engine
	renderer := x.renderer
	x.mu.Unlock()

	if engine != nil {
		engine.Seek(m.Start - seekLeadIn)
	}
	if renderer != nil {
		renderer.ShowChunk(m.Chunk, true)
		renderer.SetHighlights(inChunk)
	}
}
