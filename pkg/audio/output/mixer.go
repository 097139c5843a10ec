// ABOUTME: Software mixer with a sample-frame device clock
// ABOUTME: Schedules voices at exact frames, reports completions and keeps an analyser ring
package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/lanlan-project/voicestage/pkg/audio/resample"
)

// Voice is one chunk committed to the device
type Voice interface {
	// Stop silences the voice and suppresses its completion callback.
	// Stopping a finished voice is a no-op.
	Stop()
}

// MixerConfig configures the device format and analyser size
type MixerConfig struct {
	SampleRate     int
	Channels       int
	AnalyserWindow int
}

// Mixer mixes scheduled voices and exposes the device clock
type Mixer struct {
	backend Backend
	config  MixerConfig

	mu        sync.Mutex
	rendered  int64
	voices    []*voice
	pending   []*voice
	ring      []float32
	ringPos   int
	scratch   []float32
	open      bool
	suspended bool

	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

type voice struct {
	mixer    *Mixer
	start    int64
	samples  []float32
	done     func()
	stopped  bool
	finished bool
}

// NewMixer creates a mixer for the given backend
func NewMixer(backend Backend, config MixerConfig) *Mixer {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.BinarySampleRate
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.AnalyserWindow <= 0 {
		config.AnalyserWindow = 2048
	}

	return &Mixer{
		backend: backend,
		config:  config,
		ring:    make([]float32, config.AnalyserWindow),
		wake:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Open starts the backend and the completion notifier
func (m *Mixer) Open() error {
	m.mu.Lock()
	if m.open {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.backend.Open(m.config.SampleRate, m.config.Channels, m); err != nil {
		return &DeviceError{Op: "open", Err: err}
	}

	m.mu.Lock()
	m.open = true
	m.mu.Unlock()

	go m.notify()
	return nil
}

// SampleRate returns the device rate
func (m *Mixer) SampleRate() int {
	return m.config.SampleRate
}

// Now returns the device clock in seconds
func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.rendered) / float64(m.config.SampleRate)
}

// Start schedules a chunk to begin at device time at. A start time in the
// past begins at the next rendered frame. done runs on the notifier
// goroutine once the final sample has been rendered.
func (m *Mixer) Start(chunk *audio.Chunk, at float64, done func()) (Voice, error) {
	if chunk == nil || len(chunk.Samples) == 0 {
		return nil, fmt.Errorf("cannot start empty chunk")
	}

	samples := chunk.Samples
	if chunk.SampleRate != m.config.SampleRate {
		samples = resample.Convert(chunk.Samples, chunk.SampleRate, m.config.SampleRate)
		if len(samples) == 0 {
			return nil, fmt.Errorf("cannot resample chunk at %dHz", chunk.SampleRate)
		}
	}

	v := &voice{
		mixer:   m,
		start:   int64(math.Round(at * float64(m.config.SampleRate))),
		samples: samples,
		done:    done,
	}

	m.mu.Lock()
	if v.start < m.rendered {
		v.start = m.rendered
	}
	m.voices = append(m.voices, v)
	m.mu.Unlock()

	return v, nil
}

// Stop removes the voice from the mix
func (v *voice) Stop() {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.stopped {
		return
	}
	v.stopped = true
	for i, other := range m.voices {
		if other == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			break
		}
	}
}

// Active returns the number of voices still scheduled or sounding
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render mixes the next len(out) mono frames and advances the clock
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderLocked(out)
}

func (m *Mixer) renderLocked(out []float32) {
	for i := range out {
		out[i] = 0
	}

	frames := int64(len(out))
	end := m.rendered + frames
	kept := m.voices[:0]
	finished := false

	for _, v := range m.voices {
		vEnd := v.start + int64(len(v.samples))
		from := max(v.start, m.rendered)
		to := min(vEnd, end)
		for f := from; f < to; f++ {
			out[f-m.rendered] += v.samples[f-v.start]
		}

		if vEnd <= end {
			v.finished = true
			m.pending = append(m.pending, v)
			finished = true
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept

	for _, s := range out {
		m.ring[m.ringPos] = s
		m.ringPos = (m.ringPos + 1) % len(m.ring)
	}
	m.rendered = end

	if finished {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// Read renders interleaved little-endian PCM16 for byte-pulling backends
func (m *Mixer) Read(p []byte) (int, error) {
	frameBytes := 2 * m.config.Channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	m.mu.Lock()
	if cap(m.scratch) < frames {
		m.scratch = make([]float32, frames)
	}
	mono := m.scratch[:frames]
	m.renderLocked(mono)
	m.mu.Unlock()

	for i, s := range mono {
		sample := uint16(audio.FloatToInt16(s))
		for ch := 0; ch < m.config.Channels; ch++ {
			binary.LittleEndian.PutUint16(p[i*frameBytes+ch*2:], sample)
		}
	}
	return frames * frameBytes, nil
}

// TimeDomain copies the most recent mixed samples, oldest first, into dst
// and returns how many were written
func (m *Mixer) TimeDomain(dst []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(len(dst), len(m.ring))
	start := m.ringPos - n
	if start < 0 {
		start += len(m.ring)
	}
	for i := 0; i < n; i++ {
		dst[i] = m.ring[(start+i)%len(m.ring)]
	}
	return n
}

// Suspended reports whether the device is paused
func (m *Mixer) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// Suspend pauses the backend
func (m *Mixer) Suspend() error {
	if err := m.backend.Suspend(); err != nil {
		return &DeviceError{Op: "suspend", Err: err}
	}
	m.mu.Lock()
	m.suspended = true
	m.mu.Unlock()
	return nil
}

// Resume restarts a suspended backend
func (m *Mixer) Resume() error {
	if err := m.backend.Resume(); err != nil {
		return &DeviceError{Op: "resume", Err: err}
	}
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()
	return nil
}

// Close stops the notifier and releases the backend
func (m *Mixer) Close() error {
	m.once.Do(func() { close(m.closed) })
	return m.backend.Close()
}

// notify runs completion callbacks outside the render path
func (m *Mixer) notify() {
	for {
		select {
		case <-m.wake:
		case <-m.closed:
			return
		}

		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		var callbacks []func()
		for _, v := range batch {
			if !v.stopped && v.done != nil {
				callbacks = append(callbacks, v.done)
			}
			// A finished voice can no longer be stopped
			v.stopped = true
		}
		m.mu.Unlock()

		for _, cb := range callbacks {
			cb()
		}
	}
}
