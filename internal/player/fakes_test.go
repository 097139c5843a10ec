// ABOUTME: Test doubles for the player package
// ABOUTME: Manual-clock device, recording animation target and chunk builders
package player

import (
	"sync"
	"sync/atomic"

	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/lanlan-project/voicestage/pkg/audio/output"
)

type fakeVoice struct {
	stopped atomic.Bool
}

func (v *fakeVoice) Stop() { v.stopped.Store(true) }

type fakeStart struct {
	chunk *audio.Chunk
	at    float64
	done  func()
	voice *fakeVoice
}

// fakeDevice is a device whose clock only moves when the test says so
type fakeDevice struct {
	mu        sync.Mutex
	now       float64
	starts    []*fakeStart
	suspended bool
	suspends  int
	resumeErr error
	startErr  error
	level     float32
}

func (d *fakeDevice) Now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

func (d *fakeDevice) Start(chunk *audio.Chunk, at float64, done func()) (output.Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return nil, d.startErr
	}
	v := &fakeVoice{}
	d.starts = append(d.starts, &fakeStart{chunk: chunk, at: at, done: done, voice: v})
	return v, nil
}

// TimeDomain returns a square wave of amplitude level, so its centered RMS is level
func (d *fakeDevice) TimeDomain(dst []float32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range dst {
		if i%2 == 0 {
			dst[i] = d.level
		} else {
			dst[i] = -d.level
		}
	}
	return len(dst)
}

func (d *fakeDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

func (d *fakeDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = true
	d.suspends++
	return nil
}

func (d *fakeDevice) suspendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspends
}

func (d *fakeDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resumeErr != nil {
		return &output.DeviceError{Op: "resume", Err: d.resumeErr}
	}
	d.suspended = false
	return nil
}

func (d *fakeDevice) setNow(t float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = t
}

func (d *fakeDevice) snapshot() []*fakeStart {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeStart(nil), d.starts...)
}

// finish fires the completion for start i as the device would
func (d *fakeDevice) finish(i int) {
	s := d.snapshot()[i]
	if !s.voice.stopped.Load() {
		s.done()
	}
}

func (d *fakeDevice) finishAll() {
	for i := range d.snapshot() {
		d.finish(i)
	}
}

// fakeTarget records parameter writes for known ids
type fakeTarget struct {
	mu     sync.Mutex
	known  map[string]bool
	values map[string]float64
	writes int
}

func newFakeTarget(ids ...string) *fakeTarget {
	known := make(map[string]bool)
	for _, id := range ids {
		known[id] = true
	}
	return &fakeTarget{known: known, values: make(map[string]float64)}
}

func (f *fakeTarget) TrySetParameter(id string, value float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known[id] {
		return false
	}
	f.values[id] = value
	f.writes++
	return true
}

func (f *fakeTarget) value(id string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[id]
	return v, ok
}

// seqChunk is a sequenced 48 kHz chunk of the given length in seconds
func seqChunk(seq uint64, seconds float64) *audio.Chunk {
	return &audio.Chunk{
		Sequence:   seq,
		Sequenced:  true,
		Samples:    make([]float32, int(seconds*audio.BinarySampleRate)),
		SampleRate: audio.BinarySampleRate,
	}
}

// clip is an unsequenced 24 kHz chunk of the given length in seconds
func clip(seconds float64) *audio.Chunk {
	return &audio.Chunk{
		Samples:    make([]float32, int(seconds*24000)),
		SampleRate: 24000,
	}
}

// harness drives a Scheduler synchronously against a fakeDevice
type harness struct {
	sched      *Scheduler
	session    *PlaybackSession
	dev        *fakeDevice
	pending    []uint64
	opens      int
	openErr    error
	commits    []*ScheduledPlayback
	underruns  int
	depths     []int
	deviceErrs []error
}

func newHarness(policy JitterPolicy) *harness {
	h := &harness{
		session: NewPlaybackSession(policy),
		dev:     &fakeDevice{},
	}
	open := func() (Device, error) {
		h.opens++
		if h.openErr != nil {
			return nil, &output.DeviceError{Op: "open", Err: h.openErr}
		}
		return h.dev, nil
	}
	h.sched = NewScheduler(h.session, DefaultSchedulerConfig(), open, func(id uint64) {
		h.pending = append(h.pending, id)
	})
	h.sched.SetHooks(SchedulerHooks{
		Commit:       func(p *ScheduledPlayback) { h.commits = append(h.commits, p) },
		Underrun:     func(int) { h.underruns++ },
		DepthChanged: func(d int) { h.depths = append(h.depths, d) },
		DeviceError:  func(err error) { h.deviceErrs = append(h.deviceErrs, err) },
	})
	return h
}

// finish completes start i and routes the completion into the scheduler
func (h *harness) finish(i int) {
	h.dev.finish(i)
	pending := h.pending
	h.pending = nil
	for _, id := range pending {
		h.sched.Complete(id)
	}
}
