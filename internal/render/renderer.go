// Package render implements the two transcript renderers: a paged view
// showing one chunk at a time with crossfade transitions, and a
// continuous auto-scrolling teleprompter view. Renderers consume the
// engine's per-tick signal and own their word spans exclusively; nothing
// outside the package aliases into them.
package render

import (
	"github.com/bookkaraoke/kara/internal/timing"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// WordState is the highlight state of a rendered word.
type WordState int

const (
	// Upcoming words have not been spoken yet.
	Upcoming WordState = iota
	// Active is the word being spoken right now.
	Active
	// Spoken words are behind the play position.
	Spoken
)

// span is a word handle: the renderer-owned per-word state. Style is
// resolved once per build/show, never per tick.
type span struct {
	word    string
	start   float64
	end     float64
	style   timing.Style
	state   WordState
	match   bool // search match inside the visible chunk
	current bool // the match the cursor is on
}

// Highlight addresses one search match for renderer highlighting.
type Highlight struct {
	Chunk   int
	Word    int
	Current bool
}

// Settings holds the user-tunable display options, applied live.
type Settings struct {
	HighlightColor string // active word, hex
	SpokenColor    string // already-spoken words, hex
	UpcomingColor  string // not-yet-spoken words, hex
	BackgroundColor string // fade target, hex
	ChapterColor   string // chapter titles in the teleprompter, hex
	MatchColor     string // search match marker, hex
	AutoScroll     bool   // teleprompter follows playback
}

// DefaultSettings mirrors the stock theme.
func DefaultSettings() Settings {
	return Settings{
		HighlightColor:  "#FFD700",
		SpokenColor:     "#BBBBBB",
		UpcomingColor:   "#555555",
		BackgroundColor: "#1A1A2E",
		ChapterColor:    "#8888AA",
		MatchColor:      "#44AAFF",
		AutoScroll:      true,
	}
}

// Renderer is the contract both variants share. A renderer with no size
// set yet (no target attached) silently no-ops its View.
type Renderer interface {
	// SetChunks replaces the transcript data.
	SetChunks(chunks []timing.Chunk)

	// SetFormatting replaces the formatting map consulted at build time.
	SetFormatting(m timing.FormattingMap)

	// ShowChunk brings the given chunk into view. Out-of-range indices
	// clear the view (paged) or are ignored (continuous).
	ShowChunk(index int, animate bool)

	// UpdateTime consumes one tick of the engine's signal.
	UpdateTime(t float64, chunkIndex, wordIndex int, fadeAlpha float64)

	// UpdateProgress records overall narration progress in [0,1].
	UpdateProgress(progress float64)

	// Progress returns the last recorded progress.
	Progress() float64

	// ApplySettings applies display settings live.
	ApplySettings(s Settings)

	// SetSize attaches the renderer to a target area. Zero size detaches.
	SetSize(width, height int)

	// SetHighlights marks search matches; ClearHighlights removes them.
	SetHighlights(matches []Highlight)
	ClearHighlights()

	// View renders the current visible state.
	View() string

	// Destroy cancels outstanding timers. Idempotent.
	Destroy()
}

// blendToward fades a hex color toward the background by alpha: 1 keeps
// the color, 0 lands on the background.
func blendToward(hex, bgHex string, alpha float64) string {
	if alpha >= 1 {
		return hex
	}
	if alpha < 0 {
		alpha = 0
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return hex
	}
	bg, err := colorful.Hex(bgHex)
	if err != nil {
		return hex
	}
	return bg.BlendLuv(c, alpha).Hex()
}
