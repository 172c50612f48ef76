package audio

import "sync"

// MockSource is a deterministic TimeSource for tests. Position only
// moves when the test says so.
type MockSource struct {
	mu sync.Mutex

	pos      float64
	dur      float64
	rate     float64
	volume   float64
	playing  bool
	closed   bool
	playErr  error
	seeks    []float64
	closes   int
	playFrom []float64
}

// NewMockSource creates a mock with the given duration.
func NewMockSource(duration float64) *MockSource {
	return &MockSource{dur: duration, rate: 1, volume: 1}
}

// SetPosition moves the mock's play position directly.
func (m *MockSource) SetPosition(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = t
}

// Advance moves the play position forward by dt seconds.
func (m *MockSource) Advance(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos += dt
}

// FailPlay makes subsequent Play calls return err.
func (m *MockSource) FailPlay(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Seeks returns all positions Seek was called with.
func (m *MockSource) Seeks() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.seeks...)
}

// CloseCount returns how many times Close was called.
func (m *MockSource) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Rate returns the last rate set.
func (m *MockSource) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Volume returns the last volume set.
func (m *MockSource) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Position implements TimeSource.
func (m *MockSource) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Duration implements TimeSource.
func (m *MockSource) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dur
}

// Seek implements TimeSource.
func (m *MockSource) Seek(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = t
	m.seeks = append(m.seeks, t)
}

// Play implements TimeSource.
func (m *MockSource) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	m.playFrom = append(m.playFrom, m.pos)
	return nil
}

// Pause implements TimeSource.
func (m *MockSource) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
}

// SetVolume implements TimeSource.
func (m *MockSource) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

// SetRate implements TimeSource.
func (m *MockSource) SetRate(r float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = r
}

// Ended implements TimeSource.
func (m *MockSource) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing && m.pos >= m.dur
}

// Close implements TimeSource.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closes++
	return nil
}
