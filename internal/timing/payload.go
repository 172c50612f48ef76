package timing

import (
	"encoding/json"
	"fmt"
	"io"
)

// Payload is the finished project artifact delivered by the remote
// TTS/alignment pipeline: audio location plus word-level timestamps,
// formatting and chapter markers.
type Payload struct {
	Title      string            `json:"title"`
	AudioURL   string            `json:"audio_url"`
	Duration   float64           `json:"duration"`
	Chunks     []Chunk           `json:"chunks"`
	Formatting map[string]string `json:"formatting"`
	Chapters   []Chapter         `json:"chapters,omitempty"`
}

// DecodePayload reads and sanitizes a project payload. Malformed timing
// data is tolerated rather than rejected: words with start > end are
// clamped to zero-length, and empty chunks are kept (their range never
// matches any playback time).
func DecodePayload(r io.Reader) (*Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding project payload: %w", err)
	}
	for _, chunk := range p.Chunks {
		for i := range chunk {
			if chunk[i].End < chunk[i].Start {
				chunk[i].End = chunk[i].Start
			}
		}
	}
	return &p, nil
}

// FormattingMap converts the payload's wire formatting into a lookup map
// keyed by normalized word.
func (p *Payload) FormattingMap() FormattingMap {
	if len(p.Formatting) == 0 {
		return nil
	}
	m := make(FormattingMap, len(p.Formatting))
	for word, style := range p.Formatting {
		m[Normalize(word)] = ParseStyle(style)
	}
	return m
}
