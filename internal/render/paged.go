package render

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/bookkaraoke/kara/internal/karaoke"
	"github.com/bookkaraoke/kara/internal/timing"
)

// Transition phase lengths mirror the original crossfade, with the
// fallback bounding worst-case latency if ticks stop arriving.
const (
	fadeOutDuration    = 200 * time.Millisecond
	fadeInDuration     = 250 * time.Millisecond
	transitionFallback = 350 * time.Millisecond
)

const (
	phaseOut = iota
	phaseIn
)

// Paged shows one chunk at a time. ShowChunk swaps chunks with a
// two-phase fade; UpdateTime retags every visible span per tick, which
// stays cheap because a chunk holds a bounded, small word count.
type Paged struct {
	mu sync.Mutex

	clock      karaoke.Clock
	settings   Settings
	chunks     []timing.Chunk
	formatting timing.FormattingMap

	spans   []span
	current int // chunk on display, -1 when cleared

	fadeAlpha float64 // whole-block weight from the engine
	progress  float64

	width  int
	height int

	// Transition guard: a ShowChunk arriving mid-transition is ignored.
	transitioning bool
	phase         int
	phaseStart    time.Time
	target        int
	fallback      karaoke.Timer

	destroyed bool
}

// NewPaged creates a paged renderer. The clock drives transition timing.
func NewPaged(clock karaoke.Clock) *Paged {
	return &Paged{
		clock:     clock,
		settings:  DefaultSettings(),
		current:   -1,
		fadeAlpha: 1,
	}
}

// SetChunks replaces the transcript and clears the view; the caller
// re-shows the chunk it wants.
func (p *Paged) SetChunks(chunks []timing.Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = chunks
	p.spans = nil
	p.current = -1
	p.cancelTransitionLocked()
}

// SetFormatting replaces the formatting map. Takes effect on next show.
func (p *Paged) SetFormatting(m timing.FormattingMap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.formatting = m
}

// ShowChunk brings a chunk on screen. No-op when already showing index;
// out-of-range clears the view; with animate and a prior chunk shown it
// runs the two-phase fade.
func (p *Paged) ShowChunk(index int, animate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed || p.transitioning {
		return
	}
	if index == p.current {
		return
	}
	if index < 0 || index >= len(p.chunks) {
		p.spans = nil
		p.current = -1
		return
	}
	if animate && p.current >= 0 {
		p.transitioning = true
		p.phase = phaseOut
		p.phaseStart = p.clock.Now()
		p.target = index
		p.armFallbackLocked()
		return
	}
	p.buildLocked(index)
}

// UpdateTime consumes one engine tick: advances any transition, applies
// the whole-block fade weight, and retags every visible span by
// comparing its timing against t.
func (p *Paged) UpdateTime(t float64, chunkIndex, wordIndex int, fadeAlpha float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.advanceTransitionLocked(p.clock.Now())
	p.fadeAlpha = fadeAlpha
	for i := range p.spans {
		switch {
		case t >= p.spans[i].end:
			p.spans[i].state = Spoken
		case t >= p.spans[i].start:
			p.spans[i].state = Active
		default:
			p.spans[i].state = Upcoming
		}
	}
}

// UpdateProgress records overall progress for the transport display.
func (p *Paged) UpdateProgress(progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = progress
}

// Progress returns the last recorded progress.
func (p *Paged) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// ApplySettings applies display settings live.
func (p *Paged) ApplySettings(s Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

// SetSize attaches the renderer to a target area.
func (p *Paged) SetSize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width = width
	p.height = height
}

// SetHighlights marks search matches within the visible chunk.
func (p *Paged) SetHighlights(matches []Highlight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearHighlightsLocked()
	for _, m := range matches {
		if m.Chunk != p.current || m.Word < 0 || m.Word >= len(p.spans) {
			continue
		}
		p.spans[m.Word].match = true
		p.spans[m.Word].current = m.Current
	}
}

// ClearHighlights removes all search markers.
func (p *Paged) ClearHighlights() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearHighlightsLocked()
}

func (p *Paged) clearHighlightsLocked() {
	for i := range p.spans {
		p.spans[i].match = false
		p.spans[i].current = false
	}
}

// States returns the highlight state of every visible span; tests use it.
func (p *Paged) States() []WordState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WordState, len(p.spans))
	for i, s := range p.spans {
		out[i] = s.state
	}
	return out
}

// Current returns the chunk on display, -1 when cleared.
func (p *Paged) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// View renders the visible chunk, centered, with fade weighting applied
// to the whole block. An unsized renderer renders nothing.
func (p *Paged) View() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.width <= 0 || p.height <= 0 || len(p.spans) == 0 {
		return ""
	}

	alpha := p.fadeAlpha
	if p.transitioning {
		alpha = p.transitionAlphaLocked(p.clock.Now())
	}

	words := make([]string, len(p.spans))
	for i, s := range p.spans {
		words[i] = p.styleWordLocked(s, alpha)
	}
	wrapped := wordwrap.String(strings.Join(words, " "), p.width)
	lines := strings.Split(wrapped, "\n")

	// Center the block in the target area.
	var b strings.Builder
	pad := (p.height - len(lines)) / 2
	for i := 0; i < pad; i++ {
		b.WriteByte('\n')
	}
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		left := (p.width - lipgloss.Width(line)) / 2
		if left > 0 {
			b.WriteString(strings.Repeat(" ", left))
		}
		b.WriteString(line)
	}
	return b.String()
}

// Destroy cancels transition timers. Idempotent.
func (p *Paged) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
	p.cancelTransitionLocked()
}

// buildLocked creates spans for a chunk, resolving word styles once.
func (p *Paged) buildLocked(index int) {
	chunk := p.chunks[index]
	spans := make([]span, len(chunk))
	for i, wt := range chunk {
		spans[i] = span{
			word:  wt.Word,
			start: wt.Start,
			end:   wt.End,
			style: p.formatting.Lookup(wt.Word),
			state: Upcoming,
		}
	}
	p.spans = spans
	p.current = index
}

// armFallbackLocked schedules the force-complete for the current phase.
// The fallback bounds worst-case transition latency and guarantees the
// guard flag is eventually cleared even if ticks stop.
func (p *Paged) armFallbackLocked() {
	if p.fallback != nil {
		p.fallback.Stop()
	}
	p.fallback = p.clock.AfterFunc(transitionFallback, p.forceCompletePhase)
}

func (p *Paged) forceCompletePhase() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.transitioning || p.destroyed {
		return
	}
	p.completePhaseLocked()
}

// advanceTransitionLocked completes transition phases whose duration has
// elapsed.
func (p *Paged) advanceTransitionLocked(now time.Time) {
	for p.transitioning {
		d := fadeOutDuration
		if p.phase == phaseIn {
			d = fadeInDuration
		}
		if now.Sub(p.phaseStart) < d {
			return
		}
		p.completePhaseLocked()
	}
}

// completePhaseLocked moves to the next phase: after fade-out the new
// content is swapped in, after fade-in the transition ends.
func (p *Paged) completePhaseLocked() {
	if p.phase == phaseOut {
		p.buildLocked(p.target)
		p.phase = phaseIn
		p.phaseStart = p.clock.Now()
		p.armFallbackLocked()
		return
	}
	p.transitioning = false
	if p.fallback != nil {
		p.fallback.Stop()
		p.fallback = nil
	}
}

func (p *Paged) cancelTransitionLocked() {
	p.transitioning = false
	if p.fallback != nil {
		p.fallback.Stop()
		p.fallback = nil
	}
}

// transitionAlphaLocked computes the block alpha during a transition:
// fading out goes 1 -> 0, fading in 0 -> 1.
func (p *Paged) transitionAlphaLocked(now time.Time) float64 {
	elapsed := now.Sub(p.phaseStart)
	if p.phase == phaseOut {
		f := 1 - float64(elapsed)/float64(fadeOutDuration)
		if f < 0 {
			f = 0
		}
		return f
	}
	f := float64(elapsed) / float64(fadeInDuration)
	if f > 1 {
		f = 1
	}
	return f
}

// styleWordLocked renders one span with its state color faded by alpha.
func (p *Paged) styleWordLocked(s span, alpha float64) string {
	var hex string
	switch s.state {
	case Active:
		hex = p.settings.HighlightColor
	case Spoken:
		hex = p.settings.SpokenColor
	default:
		hex = p.settings.UpcomingColor
	}
	if s.match {
		hex = p.settings.MatchColor
	}

	st := lipgloss.NewStyle().Foreground(lipgloss.Color(blendToward(hex, p.settings.BackgroundColor, alpha)))
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

var _ Renderer = (*Paged)(nil)
