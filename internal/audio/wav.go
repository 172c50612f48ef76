package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotWAV means the data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a WAV file")

	// ErrUnsupportedFormat means the WAV is not 16-bit PCM mono/stereo.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// wavData is decoded 16-bit PCM with its format parameters.
type wavData struct {
	pcm        []byte
	sampleRate int
	channels   int
}

func (w *wavData) bytesPerFrame() int {
	return 2 * w.channels
}

func (w *wavData) duration() float64 {
	frames := len(w.pcm) / w.bytesPerFrame()
	return float64(frames) / float64(w.sampleRate)
}

// decodeWAV parses a RIFF/WAVE stream, accepting 16-bit PCM with one or
// two channels. Chunks other than fmt and data are skipped, including
// their odd-length pad byte.
func decodeWAV(r io.Reader) (*wavData, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		w      wavData
		gotFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, ErrUnsupportedFormat
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("reading fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(buf[0:2])
			channels := int(binary.LittleEndian.Uint16(buf[2:4]))
			sampleRate := int(binary.LittleEndian.Uint32(buf[4:8]))
			bits := binary.LittleEndian.Uint16(buf[14:16])
			if format != 1 || bits != 16 || channels < 1 || channels > 2 {
				return nil, ErrUnsupportedFormat
			}
			w.channels = channels
			w.sampleRate = sampleRate
			gotFmt = true
		case "data":
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("reading data chunk: %w", err)
			}
			w.pcm = buf
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("skipping %s chunk: %w", id, err)
			}
			continue
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil && err != io.EOF {
				return nil, fmt.Errorf("skipping pad byte: %w", err)
			}
		}
	}

	if !gotFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrNotWAV)
	}
	if w.pcm == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
	}
	return &w, nil
}
