// ABOUTME: Playback engine event loop owning the session
// ABOUTME: Routes decodes, controls, completions and timers through one goroutine
package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lanlan-project/voicestage/internal/metrics"
	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/lanlan-project/voicestage/pkg/audio/decode"
	"golang.org/x/sync/errgroup"
)

// Config holds every engine tunable
type Config struct {
	Scheduler     SchedulerConfig
	Jitter        JitterPolicy
	LipSync       LipSyncConfig
	FrameInterval time.Duration
	QueueSize     int
	// IdleSuspend pauses the device after this long with nothing to play;
	// zero keeps it running
	IdleSuspend time.Duration
}

// DefaultConfig returns the stock engine configuration
func DefaultConfig() Config {
	return Config{
		Scheduler:     DefaultSchedulerConfig(),
		Jitter:        DefaultJitterPolicy(),
		LipSync:       DefaultLipSyncConfig(),
		FrameInterval: time.Second / 60,
		QueueSize:     256,
		IdleSuspend:   30 * time.Second,
	}
}

// Validate checks every section
func (c Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Jitter.Validate(); err != nil {
		return err
	}
	if err := c.LipSync.Validate(); err != nil {
		return err
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive, got %v", c.FrameInterval)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.IdleSuspend < 0 {
		return fmt.Errorf("idle suspend must not be negative, got %v", c.IdleSuspend)
	}
	return nil
}

// Stats is a snapshot of engine counters and state
type Stats struct {
	SessionID     string
	State         State
	Discipline    Discipline
	Received      int64
	Played        int64
	DecodeErrors  int64
	Stale         int64
	Underruns     int64
	Interruptions int64
	DeviceErrors  int64
	TargetDepth   int
	BufferDepth   int
	Scheduled     int
	MouthOpenness float64
}

type decodeJob struct {
	format  string
	payload []byte
	seq     uint64
	gen     uint64
}

type decodeResult struct {
	format string
	chunk  *audio.Chunk
	err    error
	gen    uint64
}

type control struct {
	reason Reason
	gen    uint64
}

// Engine runs the playback pipeline. Submit and Interrupt are safe from
// any goroutine; everything else happens inside Run.
type Engine struct {
	config      Config
	session     *PlaybackSession
	scheduler   *Scheduler
	lipSync     *LipSync
	interrupter *Interrupter
	decoder     *decode.ChunkDecoder
	metrics     *metrics.Metrics

	pcmJobs     chan decodeJob
	encodedJobs chan decodeJob
	decoded     chan decodeResult
	controls    chan control
	completions chan uint64
	done        chan struct{}

	// gen is the interruption count seen by submitters
	gen atomic.Uint64

	// counters is owned by the loop; snapshot is what Stats returns
	counters Stats
	statsMu  sync.Mutex
	snapshot Stats

	// Callbacks run on the engine goroutine
	OnStatus func(message string)
	OnError  func(err error)
}

// NewEngine creates an engine. open is called lazily on the first chunk.
// target and m may be nil.
func NewEngine(config Config, open DeviceOpener, target AnimationTarget, m *metrics.Metrics) *Engine {
	session := NewPlaybackSession(config.Jitter)
	lipSync := NewLipSync(config.LipSync, target)

	e := &Engine{
		config:      config,
		session:     session,
		lipSync:     lipSync,
		interrupter: NewInterrupter(lipSync),
		decoder:     decode.NewChunkDecoder(),
		metrics:     m,
		pcmJobs:     make(chan decodeJob, config.QueueSize),
		encodedJobs: make(chan decodeJob, config.QueueSize),
		decoded:     make(chan decodeResult, config.QueueSize),
		controls:    make(chan control, config.QueueSize),
		completions: make(chan uint64, config.QueueSize),
		done:        make(chan struct{}),
	}

	e.scheduler = NewScheduler(session, config.Scheduler, open, e.deliverCompletion)
	e.scheduler.SetHooks(SchedulerHooks{
		Commit:       e.onCommit,
		Underrun:     e.onUnderrun,
		DepthChanged: e.onDepthChanged,
		DeviceError:  e.onDeviceError,
	})

	e.publish()
	return e
}

// SubmitPCM queues a binary PCM16 payload with its transport sequence.
// Returns false once the engine has stopped.
func (e *Engine) SubmitPCM(payload []byte, seq uint64) bool {
	return e.submit(e.pcmJobs, decodeJob{format: decode.FormatPCM16Binary, payload: payload, seq: seq})
}

// SubmitEncoded queues a base64 encoded clip
func (e *Engine) SubmitEncoded(b64 string) bool {
	return e.submit(e.encodedJobs, decodeJob{format: decode.FormatEncodedBase64, payload: []byte(b64)})
}

func (e *Engine) submit(jobs chan decodeJob, j decodeJob) bool {
	select {
	case <-e.done:
		return false
	default:
	}

	j.gen = e.gen.Load()
	select {
	case jobs <- j:
		return true
	case <-e.done:
		return false
	}
}

// Interrupt halts playback. Audio submitted before the call never plays;
// audio submitted after it starts a fresh utterance.
func (e *Engine) Interrupt(reason Reason) {
	c := control{reason: reason, gen: e.gen.Add(1)}
	select {
	case e.controls <- c:
	case <-e.done:
	}
}

// Stats returns the latest snapshot
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.snapshot
}

// Done is closed when Run returns
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run drives the pipeline until ctx is cancelled
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	log.Info("Playback engine started", "session", e.session.ID)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.decodeWorker(ctx, e.pcmJobs) })
	g.Go(func() error { return e.decodeWorker(ctx, e.encodedJobs) })
	g.Go(func() error { return e.loop(ctx) })

	err := g.Wait()
	log.Info("Playback engine stopped", "session", e.session.ID)
	return err
}

// decodeWorker decodes jobs in FIFO order off the engine goroutine
func (e *Engine) decodeWorker(ctx context.Context, jobs <-chan decodeJob) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-jobs:
			chunk, err := e.decoder.Decode(j.format, j.payload, j.seq)
			r := decodeResult{format: j.format, chunk: chunk, err: err, gen: j.gen}
			select {
			case e.decoded <- r:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// loopTimer is a one-shot timer whose channel is nil while disarmed
type loopTimer struct {
	t     *time.Timer
	armed bool
}

func newLoopTimer() *loopTimer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &loopTimer{t: t}
}

func (l *loopTimer) set(want bool, d time.Duration) {
	switch {
	case want && !l.armed:
		l.t.Reset(d)
		l.armed = true
	case !want && l.armed:
		l.t.Stop()
		l.armed = false
	}
}

func (l *loopTimer) C() <-chan time.Time {
	if !l.armed {
		return nil
	}
	return l.t.C
}

func (e *Engine) loop(ctx context.Context) error {
	poll := newLoopTimer()
	buffering := newLoopTimer()
	frame := newLoopTimer()
	idle := newLoopTimer()
	defer poll.set(false, 0)
	defer buffering.set(false, 0)
	defer frame.set(false, 0)
	defer idle.set(false, 0)

	for {
		poll.set(e.scheduler.NeedsPoll(), e.config.Scheduler.PollInterval)
		buffering.set(e.scheduler.Buffering(), e.config.Scheduler.BufferingTimeout)
		frame.set(e.lipSync.Active(), e.config.FrameInterval)
		idle.set(e.idleDevice(), e.config.IdleSuspend)

		select {
		case <-ctx.Done():
			e.applyInterrupt(ReasonShutdown)
			e.publish()
			return nil

		case r := <-e.decoded:
			e.handleResult(r)

		case c := <-e.controls:
			e.applyControl(c)

		case id := <-e.completions:
			e.scheduler.Complete(id)
			if e.session.Quiet() && e.lipSync.Active() {
				e.stopLipSync()
			}

		case <-poll.C():
			poll.armed = false
			e.scheduler.Poll()

		case <-buffering.C():
			buffering.armed = false
			e.scheduler.BufferingExpired()

		case <-frame.C():
			frame.armed = false
			e.tick()

		case <-idle.C():
			idle.armed = false
			e.suspendIdle()
		}

		e.publish()
	}
}

func (e *Engine) handleResult(r decodeResult) {
	sess := e.session

	// The control for a newer generation is already queued
	for sess.Generation < r.gen {
		e.applyControl(<-e.controls)
	}

	e.counters.Received++
	e.metrics.Received(r.format)

	if r.gen < sess.Generation {
		e.counters.Stale++
		e.metrics.Stale()
		log.Debug("Dropped stale chunk", "gen", r.gen, "current", sess.Generation)
		return
	}

	if r.err != nil {
		e.counters.DecodeErrors++
		e.metrics.DecodeFailed(r.format)
		log.Warn("Dropped undecodable chunk", "format", r.format, "err", r.err)
		if e.OnError != nil {
			e.OnError(r.err)
		}
		return
	}

	e.scheduler.Enqueue(r.chunk)
}

func (e *Engine) applyControl(c control) {
	prev := e.session.Generation
	e.applyInterrupt(c.reason)
	e.session.Generation = max(prev, c.gen)
}

func (e *Engine) applyInterrupt(reason Reason) {
	e.interrupter.Interrupt(e.session, reason)
	e.counters.Interruptions++
	e.metrics.Interrupted(reason.String())
	e.metrics.SetMouth(0)
}

func (e *Engine) tick() {
	if e.session.Quiet() {
		e.stopLipSync()
		return
	}
	e.metrics.SetMouth(e.lipSync.Tick())
}

func (e *Engine) stopLipSync() {
	e.lipSync.Stop()
	e.metrics.SetMouth(0)
}

// idleDevice reports whether an open, running device has nothing to play
func (e *Engine) idleDevice() bool {
	dev := e.scheduler.Device()
	if e.config.IdleSuspend <= 0 || dev == nil {
		return false
	}
	return e.session.Quiet() && !e.scheduler.Buffering() && !dev.Suspended()
}

// suspendIdle pauses the device; the next commit resumes it
func (e *Engine) suspendIdle() {
	if !e.idleDevice() {
		return
	}
	if err := e.scheduler.Device().Suspend(); err != nil {
		e.onDeviceError(err)
		return
	}
	log.Info("Audio device suspended while idle", "after", e.config.IdleSuspend)
}

// deliverCompletion runs on the device notifier goroutine
func (e *Engine) deliverCompletion(id uint64) {
	select {
	case e.completions <- id:
	case <-e.done:
	}
}

func (e *Engine) onCommit(p *ScheduledPlayback) {
	e.counters.Played++
	e.metrics.Committed(p.Chunk.Duration())
	if !e.lipSync.Active() {
		e.lipSync.Start(e.scheduler.Device())
	}
}

func (e *Engine) onUnderrun(targetDepth int) {
	e.counters.Underruns++
	e.metrics.Underrun()
}

func (e *Engine) onDepthChanged(targetDepth int) {
	log.Info("Jitter buffer target depth changed", "depth", targetDepth)
}

func (e *Engine) onDeviceError(err error) {
	e.counters.DeviceErrors++
	e.metrics.DeviceError()
	log.Error("Audio device error", "err", err)
	if e.OnStatus != nil {
		e.OnStatus(fmt.Sprintf("audio device unavailable: %v", err))
	}
	if e.OnError != nil {
		e.OnError(err)
	}
}

// publish copies engine-owned state into the shared snapshot
func (e *Engine) publish() {
	sess := e.session
	e.metrics.SetDepths(sess.Policy.TargetDepth(), sess.Buffer.Len())

	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	s := e.counters
	s.SessionID = sess.ID
	s.State = sess.State
	s.Discipline = sess.Discipline
	s.TargetDepth = sess.Policy.TargetDepth()
	s.BufferDepth = sess.Buffer.Len()
	s.Scheduled = sess.Registry.Len()
	s.MouthOpenness = e.lipSync.Openness()
	e.snapshot = s
}
