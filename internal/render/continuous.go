package render

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/time/rate"

	"github.com/bookkaraoke/kara/internal/karaoke"
	"github.com/bookkaraoke/kara/internal/timing"
)

const (
	// scrollThrottle suppresses further auto-scroll requests after one
	// fires.
	scrollThrottle = 300 * time.Millisecond

	// gestureCooldown is how long after the last user scroll gesture
	// auto-scroll stays disabled.
	gestureCooldown = 3 * time.Second
)

// line is one visual row: either a chapter marker or a run of spans.
type line struct {
	chapter string
	spans   []int
}

// Continuous renders the whole transcript as an auto-scrolling
// teleprompter. Word retagging is incremental: each tick touches only
// the flat-index range between the previous and the new active word.
type Continuous struct {
	mu sync.Mutex

	clock      karaoke.Clock
	settings   Settings
	chunks     []timing.Chunk
	formatting timing.FormattingMap
	chapters   map[int]string

	spans   []span
	offsets []int // starting flat index of each chunk

	lines  []line
	lineOf []int // span index -> line index

	prevFlat int // -1 means undefined (next update backfills)

	progress float64

	width  int
	height int
	top    int // first visible line

	throttle  *rate.Limiter
	suspended bool // user gesture cooldown in effect
	cooldown  karaoke.Timer

	destroyed bool
}

// NewContinuous creates a teleprompter renderer.
func NewContinuous(clock karaoke.Clock) *Continuous {
	return &Continuous{
		clock:    clock,
		settings: DefaultSettings(),
		prevFlat: -1,
		throttle: rate.NewLimiter(rate.Every(scrollThrottle), 1),
	}
}

// SetChunks replaces the transcript. Build must be called afterward.
func (c *Continuous) SetChunks(chunks []timing.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = chunks
	c.spans = nil
	c.offsets = nil
	c.lines = nil
	c.lineOf = nil
	c.prevFlat = -1
}

// SetFormatting replaces the formatting map. Takes effect on next Build.
func (c *Continuous) SetFormatting(m timing.FormattingMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formatting = m
}

// Build flattens all chunks into one sequential address space, records
// each chunk's starting flat offset, and places chapter titles before
// the chunk at which a chapter begins. Rebuilds from scratch every call.
func (c *Continuous) Build(chapters []timing.Chapter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chapters = make(map[int]string, len(chapters))
	for _, ch := range chapters {
		c.chapters[ch.Chunk] = ch.Title
	}

	total := timing.WordCount(c.chunks)
	c.spans = make([]span, 0, total)
	c.offsets = make([]int, len(c.chunks))
	for i, chunk := range c.chunks {
		c.offsets[i] = len(c.spans)
		for _, wt := range chunk {
			c.spans = append(c.spans, span{
				word:  wt.Word,
				start: wt.Start,
				end:   wt.End,
				style: c.formatting.Lookup(wt.Word),
				state: Upcoming,
			})
		}
	}
	c.prevFlat = -1
	c.top = 0
	c.layoutLocked()
}

// ShowChunk centers the view on a chunk. The animate flag is accepted
// for contract parity; the teleprompter jumps.
func (c *Continuous) ShowChunk(index int, _ bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.offsets) || len(c.lineOf) == 0 {
		return
	}
	flat := c.offsets[index]
	if flat >= len(c.lineOf) {
		return
	}
	c.centerOnLocked(flat)
}

// UpdateTime retags the flat-index delta since the previous tick, then
// auto-scrolls if enabled and not throttled.
func (c *Continuous) UpdateTime(t float64, chunkIndex, wordIndex int, fadeAlpha float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || len(c.spans) == 0 {
		return
	}
	if chunkIndex < 0 || chunkIndex >= len(c.offsets) || wordIndex < 0 {
		return
	}
	flat := c.offsets[chunkIndex] + wordIndex
	if flat >= len(c.spans) {
		return
	}
	if flat == c.prevFlat {
		return
	}

	if c.prevFlat < 0 {
		// First update after a build or a discontinuous jump: one full
		// backfill pass.
		for i := range c.spans {
			switch {
			case i < flat:
				c.spans[i].state = Spoken
			case i == flat:
				c.spans[i].state = Active
			default:
				c.spans[i].state = Upcoming
			}
		}
	} else {
		lo, hi := c.prevFlat, flat
		if lo > hi {
			lo, hi = hi, lo
		}
		for i := lo; i <= hi; i++ {
			switch {
			case i < flat:
				c.spans[i].state = Spoken
			case i == flat:
				c.spans[i].state = Active
			default:
				c.spans[i].state = Upcoming
			}
		}
	}
	c.prevFlat = flat

	if c.settings.AutoScroll && !c.suspended && c.throttle.AllowN(c.clock.Now(), 1) {
		c.centerOnLocked(flat)
	}
}

// UserScroll reports a user scroll gesture of delta lines. It disables
// auto-scroll and starts (or restarts) the cooldown; auto-scroll
// re-enables only once the cooldown elapses with no further gesture.
func (c *Continuous) UserScroll(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.top = clamp(c.top+delta, 0, c.maxTopLocked())
	c.suspended = true
	if c.cooldown != nil {
		c.cooldown.Stop()
	}
	c.cooldown = c.clock.AfterFunc(gestureCooldown, func() {
		c.mu.Lock()
		c.suspended = false
		c.cooldown = nil
		c.mu.Unlock()
	})
}

// AutoScrolling reports whether the view currently follows playback.
func (c *Continuous) AutoScrolling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.AutoScroll && !c.suspended
}

// UpdateProgress records overall progress.
func (c *Continuous) UpdateProgress(progress float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = progress
}

// Progress returns the last recorded progress.
func (c *Continuous) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// ApplySettings applies display settings live. Turning AutoScroll back
// on clears any gesture suspension.
func (c *Continuous) ApplySettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasOff := !c.settings.AutoScroll
	c.settings = s
	if wasOff && s.AutoScroll {
		c.suspended = false
	}
}

// SetSize attaches the renderer to a target area and relayouts.
func (c *Continuous) SetSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width == c.width && height == c.height {
		return
	}
	c.width = width
	c.height = height
	c.layoutLocked()
}

// SetHighlights marks search matches across the whole transcript.
func (c *Continuous) SetHighlights(matches []Highlight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearHighlightsLocked()
	for _, m := range matches {
		if m.Chunk < 0 || m.Chunk >= len(c.offsets) {
			continue
		}
		flat := c.offsets[m.Chunk] + m.Word
		if flat < 0 || flat >= len(c.spans) {
			continue
		}
		c.spans[flat].match = true
		c.spans[flat].current = m.Current
	}
}

// ClearHighlights removes all search markers.
func (c *Continuous) ClearHighlights() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearHighlightsLocked()
}

func (c *Continuous) clearHighlightsLocked() {
	for i := range c.spans {
		c.spans[i].match = false
		c.spans[i].current = false
	}
}

// State returns the highlight state of a flat index; tests use it.
func (c *Continuous) State(flat int) WordState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flat < 0 || flat >= len(c.spans) {
		return Upcoming
	}
	return c.spans[flat].state
}

// Top returns the first visible line.
func (c *Continuous) Top() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.top
}

// View renders the visible window of lines. Unsized renderers render
// nothing.
func (c *Continuous) View() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.width <= 0 || c.height <= 0 || len(c.lines) == 0 {
		return ""
	}

	chapterStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(c.settings.ChapterColor)).
		Bold(true)

	var b strings.Builder
	end := c.top + c.height
	if end > len(c.lines) {
		end = len(c.lines)
	}
	for i := c.top; i < end; i++ {
		if i > c.top {
			b.WriteByte('\n')
		}
		ln := c.lines[i]
		if ln.chapter != "" {
			b.WriteString(chapterStyle.Render(ln.chapter))
			continue
		}
		for j, idx := range ln.spans {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(c.styleWordLocked(c.spans[idx]))
		}
	}
	return b.String()
}

// Destroy cancels the cooldown timer. Idempotent.
func (c *Continuous) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	if c.cooldown != nil {
		c.cooldown.Stop()
		c.cooldown = nil
	}
}

// layoutLocked wraps spans into lines at the current width. Each chunk
// starts a new line; chapter markers get a line of their own.
func (c *Continuous) layoutLocked() {
	c.lines = nil
	c.lineOf = make([]int, len(c.spans))
	if c.width <= 0 || len(c.spans) == 0 {
		return
	}

	for chunkIdx := range c.chunks {
		if title, ok := c.chapters[chunkIdx]; ok {
			c.lines = append(c.lines, line{chapter: title})
		}
		start := c.offsets[chunkIdx]
		end := start + len(c.chunks[chunkIdx])

		cur := line{}
		used := 0
		for i := start; i < end; i++ {
			w := runewidth.StringWidth(c.spans[i].word)
			need := w
			if len(cur.spans) > 0 {
				need++ // separating space
			}
			if used+need > c.width && len(cur.spans) > 0 {
				c.lines = append(c.lines, cur)
				cur = line{}
				used = 0
				need = w
			}
			cur.spans = append(cur.spans, i)
			used += need
			c.lineOf[i] = len(c.lines)
		}
		if len(cur.spans) > 0 {
			c.lines = append(c.lines, cur)
		}
	}
	c.top = clamp(c.top, 0, c.maxTopLocked())
}

// centerOnLocked scrolls so the given flat index sits mid-window.
func (c *Continuous) centerOnLocked(flat int) {
	if flat < 0 || flat >= len(c.lineOf) || c.height <= 0 {
		return
	}
	c.top = clamp(c.lineOf[flat]-c.height/2, 0, c.maxTopLocked())
}

func (c *Continuous) maxTopLocked() int {
	m := len(c.lines) - c.height
	if m < 0 {
		return 0
	}
	return m
}

func (c *Continuous) styleWordLocked(s span) string {
	var hex string
	switch s.state {
	case Active:
		hex = c.settings.HighlightColor
	case Spoken:
		hex = c.settings.SpokenColor
	default:
		hex = c.settings.UpcomingColor
	}
	if s.match {
		hex = c.settings.MatchColor
	}

	st := lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
	switch s.style {
	case timing.StyleBold:
		st = st.Bold(true)
	case timing.StyleItalic:
		st = st.Italic(true)
	case timing.StyleBoldItalic:
		st = st.Bold(true).Italic(true)
	}
	if s.current {
		st = st.Underline(true)
	}
	if s.state == Active {
		st = st.Bold(true)
	}
	return st.Render(s.word)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ Renderer = (*Continuous)(nil)
