// ABOUTME: Mixer and backend tests
// ABOUTME: Verifies frame-accurate scheduling, completions and the analyser ring
package output

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/lanlan-project/voicestage/pkg/audio"
)

// manualBackend never pulls on its own; tests call Render directly
type manualBackend struct {
	resumeErr error
	suspended bool
}

func (b *manualBackend) Open(int, int, io.Reader) error { return nil }
func (b *manualBackend) Suspend() error                 { b.suspended = true; return nil }
func (b *manualBackend) Resume() error                  { return b.resumeErr }
func (b *manualBackend) Close() error                   { return nil }

func TestBackendsImplementBackend(t *testing.T) {
	var _ Backend = (*Oto)(nil)
	var _ Backend = (*Malgo)(nil)
	var _ Backend = (*Null)(nil)
}

func TestNewBackend(t *testing.T) {
	for _, name := range []string{"", "oto", "malgo", "none"} {
		if _, err := NewBackend(name); err != nil {
			t.Errorf("backend %q: unexpected error %v", name, err)
		}
	}
	if _, err := NewBackend("portaudio"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func newTestMixer(t *testing.T) *Mixer {
	t.Helper()
	m := NewMixer(&manualBackend{}, MixerConfig{SampleRate: 1000, Channels: 1, AnalyserWindow: 8})
	if err := m.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func constant(n int, v float32) *audio.Chunk {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = v
	}
	return &audio.Chunk{Samples: samples, SampleRate: 1000}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestMixerClockAdvancesWithRender(t *testing.T) {
	m := newTestMixer(t)

	if m.Now() != 0 {
		t.Fatalf("expected clock at 0, got %f", m.Now())
	}
	m.Render(make([]float32, 250))
	if m.Now() != 0.25 {
		t.Errorf("expected clock at 0.25, got %f", m.Now())
	}
}

func TestMixerStartsAtExactFrame(t *testing.T) {
	m := newTestMixer(t)

	done := make(chan struct{})
	if _, err := m.Start(constant(4, 0.5), 0.003, func() { close(done) }); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	out := make([]float32, 10)
	m.Render(out)

	want := []float32{0, 0, 0, 0.5, 0.5, 0.5, 0.5, 0, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("frame %d: expected %f, got %f", i, want[i], out[i])
		}
	}
	waitFor(t, done)
}

func TestMixerBackToBackIsGapless(t *testing.T) {
	m := newTestMixer(t)

	m.Start(constant(3, 0.25), 0.001, nil)
	m.Start(constant(3, 0.5), 0.004, nil)

	out := make([]float32, 8)
	m.Render(out)

	want := []float32{0, 0.25, 0.25, 0.25, 0.5, 0.5, 0.5, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("frame %d: expected %f, got %f", i, want[i], out[i])
		}
	}
}

func TestMixerLateStartPlaysImmediately(t *testing.T) {
	m := newTestMixer(t)
	m.Render(make([]float32, 5))

	m.Start(constant(2, 1), 0.001, nil)

	out := make([]float32, 3)
	m.Render(out)
	if out[0] != 1 || out[1] != 1 || out[2] != 0 {
		t.Errorf("expected late voice at the next frame, got %v", out)
	}
}

func TestMixerCompletionSpansRenders(t *testing.T) {
	m := newTestMixer(t)

	done := make(chan struct{})
	m.Start(constant(6, 0.1), 0, func() { close(done) })

	m.Render(make([]float32, 4))
	select {
	case <-done:
		t.Fatal("completion fired before the voice finished")
	case <-time.After(20 * time.Millisecond):
	}

	m.Render(make([]float32, 4))
	waitFor(t, done)
	if m.Active() != 0 {
		t.Errorf("expected no active voices, got %d", m.Active())
	}
}

func TestVoiceStopSuppressesCompletion(t *testing.T) {
	m := newTestMixer(t)

	fired := make(chan struct{}, 1)
	v, _ := m.Start(constant(4, 1), 0, func() { fired <- struct{}{} })
	v.Stop()
	v.Stop()

	out := make([]float32, 8)
	m.Render(out)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("frame %d: stopped voice is still audible", i)
		}
	}

	select {
	case <-fired:
		t.Fatal("stopped voice reported completion")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestVoiceStopAfterFinishIsNoop(t *testing.T) {
	m := newTestMixer(t)

	done := make(chan struct{})
	v, _ := m.Start(constant(2, 1), 0, func() { close(done) })
	m.Render(make([]float32, 4))
	waitFor(t, done)

	v.Stop()
	if m.Active() != 0 {
		t.Errorf("expected no active voices, got %d", m.Active())
	}
}

func TestMixerResamplesToDeviceRate(t *testing.T) {
	m := newTestMixer(t)

	chunk := &audio.Chunk{Samples: make([]float32, 500), SampleRate: 500}
	for i := range chunk.Samples {
		chunk.Samples[i] = 0.5
	}

	done := make(chan struct{})
	m.Start(chunk, 0, func() { close(done) })
	m.Render(make([]float32, 999))
	select {
	case <-done:
		t.Fatal("resampled voice finished early")
	case <-time.After(20 * time.Millisecond):
	}
	m.Render(make([]float32, 1))
	waitFor(t, done)
}

func TestMixerTimeDomainReturnsRecentSamples(t *testing.T) {
	m := newTestMixer(t)

	chunk := &audio.Chunk{SampleRate: 1000, Samples: []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	m.Start(chunk, 0, nil)
	m.Render(make([]float32, 10))

	window := make([]float32, 4)
	if n := m.TimeDomain(window); n != 4 {
		t.Fatalf("expected 4 samples, got %d", n)
	}
	want := []float32{7, 8, 9, 10}
	for i := range want {
		if window[i] != want[i] {
			t.Errorf("index %d: expected %f, got %f", i, want[i], window[i])
		}
	}

	big := make([]float32, 100)
	if n := m.TimeDomain(big); n != 8 {
		t.Errorf("expected window capped at 8, got %d", n)
	}
}

func TestMixerReadInterleavesPCM16(t *testing.T) {
	m := NewMixer(&manualBackend{}, MixerConfig{SampleRate: 1000, Channels: 2})
	m.Start(constant(2, 0.5), 0, nil)

	buf := make([]byte, 2*2*2+1)
	n, err := m.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}
	for i := 0; i < 4; i++ {
		if got := int16(binary.LittleEndian.Uint16(buf[i*2:])); got != 16384 {
			t.Errorf("sample %d: expected 16384, got %d", i, got)
		}
	}
	if m.Now() != 0.002 {
		t.Errorf("expected clock at 0.002, got %f", m.Now())
	}
}

func TestMixerResumeError(t *testing.T) {
	backend := &manualBackend{resumeErr: errors.New("no device")}
	m := NewMixer(backend, MixerConfig{})

	if err := m.Suspend(); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	if !m.Suspended() {
		t.Fatal("expected mixer to be suspended")
	}

	err := m.Resume()
	if !errors.Is(err, ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
	if !m.Suspended() {
		t.Error("failed resume should leave the mixer suspended")
	}

	backend.resumeErr = nil
	if err := m.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if m.Suspended() {
		t.Error("expected mixer to be running")
	}
}

func TestMixerRejectsEmptyChunk(t *testing.T) {
	m := NewMixer(&manualBackend{}, MixerConfig{})
	if _, err := m.Start(&audio.Chunk{SampleRate: 48000}, 0, nil); err == nil {
		t.Error("expected error for empty chunk")
	}
}

func TestNullBackendAdvancesClock(t *testing.T) {
	m := NewMixer(NewNull(), MixerConfig{SampleRate: 8000, Channels: 1})
	if err := m.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer m.Close()

	deadline := time.Now().Add(2 * time.Second)
	for m.Now() < 0.05 {
		if time.Now().After(deadline) {
			t.Fatalf("clock did not advance, at %f", m.Now())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
