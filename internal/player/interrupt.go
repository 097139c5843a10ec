// ABOUTME: Interruption controller for barge-in and new utterances
// ABOUTME: Stops all live playback and resets the session in one step
package player

import "github.com/charmbracelet/log"

// Reason says why playback was interrupted
type Reason int

const (
	// ReasonNewMessage means the producer started a different utterance
	ReasonNewMessage Reason = iota
	// ReasonUserActivity means local input preempts playback
	ReasonUserActivity
	// ReasonShutdown means the engine is stopping
	ReasonShutdown
)

func (r Reason) String() string {
	switch r {
	case ReasonNewMessage:
		return "new-message"
	case ReasonUserActivity:
		return "user-activity"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Interrupter halts playback on the session owner's goroutine, so no
// commit can land between the stop and the reset
type Interrupter struct {
	lipSync *LipSync
	count   int
}

// NewInterrupter creates a controller that also silences lipSync
func NewInterrupter(lipSync *LipSync) *Interrupter {
	return &Interrupter{lipSync: lipSync}
}

// Interrupt stops every live handle, discards queued audio and resets both clocks
func (i *Interrupter) Interrupt(s *PlaybackSession, reason Reason) {
	stopped := s.Registry.StopAll()
	dropped := s.Buffer.Len()
	s.Reset()

	if i.lipSync != nil {
		i.lipSync.Stop()
	}
	i.count++

	log.Debug("Playback interrupted", "reason", reason, "stopped", stopped, "dropped", dropped)
}

// Count returns how many interruptions have run
func (i *Interrupter) Count() int {
	return i.count
}
