package karaoke

import "errors"

// Common errors for the playback engine.
var (
	// ErrLoad indicates the audio resource could not be fetched or decoded.
	// Retry policy belongs to the caller.
	ErrLoad = errors.New("audio resource failed to load")

	// ErrNoSource indicates playback was requested before LoadAudio.
	ErrNoSource = errors.New("no audio source loaded")

	// ErrDestroyed indicates the engine has been destroyed.
	ErrDestroyed = errors.New("engine has been destroyed")
)
