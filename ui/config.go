package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Path is a project payload file to open directly; empty opens the
	// library picker.
	Path string

	// LibraryDir is where downloaded projects live.
	LibraryDir string `env:"KARA_LIBRARY"`

	// HomeDir is the user's home directory.
	HomeDir string `env:"HOME"`

	// Teleprompter starts in the continuous view instead of paged.
	Teleprompter bool

	// Volume is the initial output volume (0.0 to 1.0).
	Volume float64

	// Speed is the initial playback rate multiplier.
	Speed float64

	// EnableMouse turns on mouse wheel scrolling in the teleprompter.
	EnableMouse bool

	// HighlightColor overrides the active-word color (hex).
	HighlightColor string `env:"KARA_HIGHLIGHT"`
}
