// Package audio provides the playback time sources consumed by the
// karaoke engine: an oto-backed WAV player and a deterministic mock.
package audio

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player plays 16-bit PCM WAV through oto and exposes a readable,
// writable play position. Position is tracked against the wall clock
// rather than the device buffer; the engine's pre/post-roll windows
// absorb the difference.
type Player struct {
	mu sync.Mutex

	context *oto.Context
	player  *oto.Player

	wav      *wavData
	duration float64

	// stream keeps the (possibly rate-resampled) bytes alive for the
	// lifetime of the oto player reading them.
	stream []byte

	rate   float64
	volume float64

	playing   bool
	base      float64 // logical position when playback last started
	startWall time.Time
	pausedAt  float64

	closed bool
}

// Open decodes a WAV file and prepares a player for it. The audio device
// is initialized eagerly so load failures surface here, not at Play.
func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes WAV data from a reader and prepares a player.
func Decode(r io.Reader) (*Player, error) {
	w, err := decodeWAV(r)
	if err != nil {
		return nil, err
	}

	op := &oto.NewContextOptions{
		SampleRate:   w.sampleRate,
		ChannelCount: w.channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("initializing audio device: %w", err)
	}
	<-ready

	return &Player{
		context:  ctx,
		wav:      w,
		duration: w.duration(),
		rate:     1,
		volume:   1,
	}, nil
}

// Duration returns the audio length in seconds.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Position returns the current play position in seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	if !p.playing {
		return p.pausedAt
	}
	pos := p.base + time.Since(p.startWall).Seconds()*p.rate
	if pos > p.duration {
		pos = p.duration
	}
	return pos
}

// Play starts or resumes playback from the current position.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("player is closed")
	}
	if p.playing {
		return nil
	}
	if p.player == nil {
		p.rebuildLocked(p.pausedAt)
	}
	p.player.Play()
	p.base = p.pausedAt
	p.startWall = time.Now()
	p.playing = true
	return nil
}

// Pause suspends playback, keeping the position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.pausedAt = p.positionLocked()
	p.playing = false
	if p.player != nil {
		p.player.Pause()
	}
}

// Seek moves the play position. The engine clamps before calling.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	wasPlaying := p.playing
	p.rebuildLocked(t)
	p.pausedAt = t
	if wasPlaying {
		p.player.Play()
		p.base = t
		p.startWall = time.Now()
	}
}

// SetRate sets the playback rate multiplier by resampling the remaining
// stream (nearest-frame, no pitch correction).
func (p *Player) SetRate(r float64) {
	if r <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || r == p.rate {
		return
	}
	pos := p.positionLocked()
	wasPlaying := p.playing
	p.rate = r
	p.rebuildLocked(pos)
	p.pausedAt = pos
	if wasPlaying {
		p.player.Play()
		p.base = pos
		p.startWall = time.Now()
	}
}

// SetVolume sets the output volume in [0,1].
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.player != nil {
		p.player.SetVolume(v)
	}
}

// Ended reports whether playback ran past the end of the audio.
func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && p.positionLocked() >= p.duration
}

// Close releases the device player. Idempotent.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.playing = false
	if p.player != nil {
		p.player.Close()
		p.player = nil
	}
	p.stream = nil
	return nil
}

// rebuildLocked replaces the oto player with one reading from position t
// at the current rate. The previous player is torn down; playback does
// not resume until the caller says so.
func (p *Player) rebuildLocked(t float64) {
	if p.player != nil {
		p.player.Pause()
		p.player.Close()
		p.player = nil
	}
	if t < 0 {
		t = 0
	}
	if t > p.duration {
		t = p.duration
	}

	bpf := p.wav.bytesPerFrame()
	offset := int(t*float64(p.wav.sampleRate)) * bpf
	if offset > len(p.wav.pcm) {
		offset = len(p.wav.pcm)
	}
	remaining := p.wav.pcm[offset:]

	if p.rate == 1 {
		// Copy so the device never reads through a slice of the master
		// buffer that a later Seek could invalidate.
		p.stream = append([]byte(nil), remaining...)
	} else {
		p.stream = resampleFrames(remaining, bpf, p.rate)
	}

	reader := &streamReader{data: p.stream}
	p.player = p.context.NewPlayer(reader)
	p.player.SetVolume(p.volume)
}

// resampleFrames stretches or squeezes PCM frames by the rate multiplier
// using nearest-frame selection. Output frame j carries input frame
// floor(j*rate), so one output second advances logical time by rate
// seconds.
func resampleFrames(pcm []byte, bytesPerFrame int, rate float64) []byte {
	inFrames := len(pcm) / bytesPerFrame
	outFrames := int(float64(inFrames) / rate)
	out := make([]byte, 0, outFrames*bytesPerFrame)
	for j := 0; j < outFrames; j++ {
		src := int(float64(j) * rate)
		if src >= inFrames {
			break
		}
		out = append(out, pcm[src*bytesPerFrame:(src+1)*bytesPerFrame]...)
	}
	return out
}

// streamReader is a plain reader over the active stream. oto pulls from
// it on its own goroutine.
type streamReader struct {
	mu   sync.Mutex
	data []byte
	off  int
}

func (r *streamReader) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(b, r.data[r.off:])
	r.off += n
	return n, nil
}
