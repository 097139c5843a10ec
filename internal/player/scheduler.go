// ABOUTME: Playback scheduler for gapless output on the device clock
// ABOUTME: Implements timer lookahead for sequenced chunks and chained pull for encoded clips
package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/lanlan-project/voicestage/pkg/audio/output"
)

// ErrUnderrun is reported when the chained path needs a chunk and none is queued
var ErrUnderrun = errors.New("buffer underrun")

// Device is the output clock and mixer the scheduler commits to
type Device interface {
	// Now returns the device clock in seconds
	Now() float64
	// Start commits a chunk to begin at device time at
	Start(chunk *audio.Chunk, at float64, done func()) (output.Voice, error)
	// TimeDomain copies the most recent output samples into dst
	TimeDomain(dst []float32) int
	Suspended() bool
	Suspend() error
	Resume() error
}

// DeviceOpener lazily creates the process-wide device on first use
type DeviceOpener func() (Device, error)

// SchedulerConfig holds timing for both disciplines
type SchedulerConfig struct {
	// StartLead is the margin before the first timer-path chunk
	StartLead time.Duration
	// Lookahead is how far past now the timer path commits chunks
	Lookahead time.Duration
	// PollInterval is the timer path's polling period
	PollInterval time.Duration
	// BufferingTimeout starts a short chained utterance below target depth
	BufferingTimeout time.Duration
}

// DefaultSchedulerConfig returns the stock timing
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		StartLead:        100 * time.Millisecond,
		Lookahead:        5 * time.Second,
		PollInterval:     25 * time.Millisecond,
		BufferingTimeout: 300 * time.Millisecond,
	}
}

// Validate checks the timing values
func (c SchedulerConfig) Validate() error {
	if c.StartLead < 0 {
		return fmt.Errorf("start lead must not be negative, got %v", c.StartLead)
	}
	if c.Lookahead <= 0 {
		return fmt.Errorf("lookahead must be positive, got %v", c.Lookahead)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.BufferingTimeout <= 0 {
		return fmt.Errorf("buffering timeout must be positive, got %v", c.BufferingTimeout)
	}
	return nil
}

// SchedulerHooks are optional observers of scheduling events
type SchedulerHooks struct {
	// Commit fires after a chunk is committed to the device
	Commit func(p *ScheduledPlayback)
	// Underrun fires when the chain finds the buffer empty
	Underrun func(targetDepth int)
	// DepthChanged fires when the jitter controller moves the target depth
	DepthChanged func(targetDepth int)
	// DeviceError fires when the device cannot be opened or resumed
	DeviceError func(err error)
}

// Scheduler moves chunks from the session buffer onto the device clock.
// All methods must be called from the goroutine that owns the session.
type Scheduler struct {
	session *PlaybackSession
	config  SchedulerConfig
	open    DeviceOpener
	device  Device
	hooks   SchedulerHooks

	// complete routes a device completion back to the owning goroutine
	complete func(id uint64)

	// inFlight is the chained path's current handle
	inFlight uint64
}

// NewScheduler creates a scheduler. complete is called from the device's
// notifier goroutine and must hand the ID back to the session owner.
func NewScheduler(session *PlaybackSession, config SchedulerConfig, open DeviceOpener, complete func(id uint64)) *Scheduler {
	return &Scheduler{
		session:  session,
		config:   config,
		open:     open,
		complete: complete,
	}
}

// SetHooks installs event observers
func (s *Scheduler) SetHooks(hooks SchedulerHooks) {
	s.hooks = hooks
}

// Device returns the opened device, or nil before the first chunk
func (s *Scheduler) Device() Device {
	return s.device
}

// NeedsPoll reports whether the timer path wants its poll timer armed
func (s *Scheduler) NeedsPoll() bool {
	return s.session.Discipline == DisciplineTimer && s.session.State != StateIdle
}

// Buffering reports whether the chained path is waiting for depth
func (s *Scheduler) Buffering() bool {
	return s.session.Discipline == DisciplineChain && s.session.State == StateBuffering
}

// Enqueue accepts a decoded chunk and starts playback if the active
// discipline allows it
func (s *Scheduler) Enqueue(c *audio.Chunk) {
	sess := s.session
	sess.Buffer.Insert(c)

	if sess.State == StateIdle {
		if c.Sequenced {
			sess.Discipline = DisciplineTimer
		} else {
			sess.Discipline = DisciplineChain
		}
		sess.State = StateBuffering
		log.Debug("Utterance started", "discipline", sess.Discipline, "session", sess.ID)
	}

	switch sess.Discipline {
	case DisciplineTimer:
		// Commits wait for the next poll so chunks arriving together are reordered first
		if sess.State == StateBuffering {
			s.startTimer()
		} else if sess.State == StateDraining {
			sess.State = StatePlaying
		}

	case DisciplineChain:
		if sess.State == StateBuffering && sess.Buffer.Len() >= sess.Policy.TargetDepth() {
			s.startChain()
		}
	}
}

// startTimer initializes the lookahead clock
func (s *Scheduler) startTimer() {
	if !s.deviceReady() {
		return
	}
	sess := s.session
	sess.NextChunkTime = s.device.Now() + s.config.StartLead.Seconds()
	sess.State = StatePlaying
}

// Poll commits every queued chunk that starts within the lookahead horizon
func (s *Scheduler) Poll() {
	sess := s.session
	if sess.Discipline != DisciplineTimer {
		return
	}
	if sess.State == StateBuffering {
		// Device was not ready on arrival
		s.startTimer()
	}
	if sess.State == StateIdle || sess.State == StateBuffering || !s.deviceReady() {
		return
	}

	horizon := s.device.Now() + s.config.Lookahead.Seconds()
	for sess.Buffer.Len() > 0 && sess.NextChunkTime < horizon {
		c, _ := sess.Buffer.Peek()
		if !s.commit(c, sess.NextChunkTime) {
			return
		}
		sess.Buffer.PopFront()
		sess.NextChunkTime += c.Duration()
	}

	if sess.Quiet() {
		sess.State = StateIdle
		sess.Discipline = DisciplineNone
	} else if sess.Buffer.Len() == 0 {
		sess.State = StateDraining
	} else {
		sess.State = StatePlaying
	}
}

// startChain begins the chained path from max(NextStartTime, now)
func (s *Scheduler) startChain() {
	if !s.deviceReady() {
		return
	}
	sess := s.session
	if now := s.device.Now(); sess.NextStartTime < now {
		sess.NextStartTime = now
	}
	sess.State = StatePlaying
	s.chainNext()
}

// BufferingExpired starts a chained utterance that never reached target depth
func (s *Scheduler) BufferingExpired() {
	if s.Buffering() && s.session.Buffer.Len() > 0 {
		log.Debug("Buffering timeout, starting below target depth",
			"queued", s.session.Buffer.Len(), "target", s.session.Policy.TargetDepth())
		s.startChain()
	}
}

// chainNext commits the head of the buffer at NextStartTime
func (s *Scheduler) chainNext() {
	sess := s.session
	c, ok := sess.Buffer.Peek()
	if !ok {
		return
	}
	if !s.commit(c, sess.NextStartTime) {
		// Leave the chunk queued and retry like a fresh start
		s.inFlight = 0
		sess.State = StateBuffering
		return
	}
	sess.Buffer.PopFront()
	sess.NextStartTime += c.Duration()
}

// Complete handles a device completion for a handle
func (s *Scheduler) Complete(id uint64) {
	sess := s.session
	if _, ok := sess.Registry.Complete(id); !ok {
		// Stopped by an interruption or already completed
		return
	}

	switch sess.Discipline {
	case DisciplineTimer:
		if sess.Quiet() {
			sess.State = StateIdle
			sess.Discipline = DisciplineNone
			log.Debug("Timer playback drained", "session", sess.ID)
		}

	case DisciplineChain:
		if id != s.inFlight {
			return
		}
		s.inFlight = 0
		if sess.Buffer.Len() > 0 {
			if sess.Policy.StableDelivery() && s.hooks.DepthChanged != nil {
				s.hooks.DepthChanged(sess.Policy.TargetDepth())
			}
			s.chainNext()
			return
		}

		changed := sess.Policy.Underrun()
		sess.State = StateIdle
		sess.Discipline = DisciplineNone
		log.Debug("Chain stopped", "err", ErrUnderrun, "target", sess.Policy.TargetDepth())
		if s.hooks.Underrun != nil {
			s.hooks.Underrun(sess.Policy.TargetDepth())
		}
		if changed && s.hooks.DepthChanged != nil {
			s.hooks.DepthChanged(sess.Policy.TargetDepth())
		}
	}
}

// commit starts one chunk on the device and registers its handle
func (s *Scheduler) commit(c *audio.Chunk, at float64) bool {
	sess := s.session
	id := sess.Registry.Reserve()
	complete := s.complete

	voice, err := s.device.Start(c, at, func() { complete(id) })
	if err != nil {
		log.Warn("Failed to commit chunk", "err", err, "at", at)
		s.reportDeviceError(err)
		return false
	}

	p := &ScheduledPlayback{ID: id, Start: at, Chunk: c, voice: voice}
	sess.Registry.Add(p)
	if sess.Discipline == DisciplineChain {
		s.inFlight = id
	}

	if s.hooks.Commit != nil {
		s.hooks.Commit(p)
	}
	return true
}

// deviceReady opens the device on first use and resumes it if suspended
func (s *Scheduler) deviceReady() bool {
	if s.device == nil {
		dev, err := s.open()
		if err != nil {
			s.reportDeviceError(err)
			return false
		}
		s.device = dev
	}

	if s.device.Suspended() {
		if err := s.device.Resume(); err != nil {
			s.reportDeviceError(err)
			return false
		}
		log.Info("Audio device resumed")
	}
	return true
}

func (s *Scheduler) reportDeviceError(err error) {
	if !errors.Is(err, output.ErrDevice) {
		err = &output.DeviceError{Op: "start", Err: err}
	}
	if s.hooks.DeviceError != nil {
		s.hooks.DeviceError(err)
	}
}
