// ABOUTME: Playback session state shared by the scheduler and controllers
// ABOUTME: One explicit object reset in place on interruption
package player

import "github.com/google/uuid"

// State is the scheduler state machine position
type State int

const (
	StateIdle State = iota
	StateBuffering
	StatePlaying
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Discipline is the scheduling strategy for the current utterance
type Discipline int

const (
	DisciplineNone Discipline = iota
	// DisciplineTimer polls the buffer and schedules ahead on a fixed interval
	DisciplineTimer
	// DisciplineChain commits one chunk at a time from completion events
	DisciplineChain
)

func (d Discipline) String() string {
	switch d {
	case DisciplineTimer:
		return "timer"
	case DisciplineChain:
		return "chain"
	default:
		return "none"
	}
}

// PlaybackSession is all mutable playback state. It is owned by a single
// goroutine and needs no locking.
type PlaybackSession struct {
	ID       string
	Buffer   *SequencingBuffer
	Registry *Registry
	Policy   *JitterController

	// NextChunkTime is the timer path's next start on the device clock
	NextChunkTime float64
	// NextStartTime is the chained path's next start on the device clock
	NextStartTime float64

	State      State
	Discipline Discipline

	// Generation counts interruptions; decodes stamped earlier are stale
	Generation uint64
}

// NewPlaybackSession creates an idle session
func NewPlaybackSession(policy JitterPolicy) *PlaybackSession {
	return &PlaybackSession{
		ID:       uuid.New().String(),
		Buffer:   NewSequencingBuffer(),
		Registry: NewRegistry(),
		Policy:   NewJitterController(policy),
	}
}

// Quiet reports that nothing is queued or sounding
func (s *PlaybackSession) Quiet() bool {
	return s.Buffer.Len() == 0 && s.Registry.Len() == 0
}

// Reset returns the session to its initial playback state. Live handles
// must already be stopped. The depth policy survives resets.
func (s *PlaybackSession) Reset() {
	s.Buffer.Clear()
	s.NextChunkTime = 0
	s.NextStartTime = 0
	s.State = StateIdle
	s.Discipline = DisciplineNone
	s.Generation++
}
