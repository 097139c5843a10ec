// ABOUTME: Tests for the interruption controller
// ABOUTME: Verifies total cancellation and session reset
package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterruptClearsEverything(t *testing.T) {
	target := newFakeTarget("ParamO")
	lipSync := NewLipSync(DefaultLipSyncConfig(), target)
	i := NewInterrupter(lipSync)

	s := NewPlaybackSession(DefaultJitterPolicy())
	voice := &fakeVoice{}
	s.Registry.Add(&ScheduledPlayback{ID: s.Registry.Reserve(), voice: voice})
	s.Buffer.Insert(seqChunk(1, 0.1))
	s.Buffer.Insert(seqChunk(2, 0.1))
	s.NextChunkTime = 12.5
	s.NextStartTime = 3
	s.State = StatePlaying
	s.Discipline = DisciplineTimer
	lipSync.Start(&fakeDevice{level: 0.1})
	lipSync.Tick()

	i.Interrupt(s, ReasonNewMessage)

	assert.True(t, voice.stopped.Load())
	assert.Equal(t, 0, s.Registry.Len())
	assert.Equal(t, 0, s.Buffer.Len())
	assert.Zero(t, s.NextChunkTime)
	assert.Zero(t, s.NextStartTime)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, DisciplineNone, s.Discipline)
	assert.Equal(t, uint64(1), s.Generation)
	assert.False(t, lipSync.Active())
	v, _ := target.value("ParamO")
	assert.Zero(t, v)
	assert.Equal(t, 1, i.Count())
}

func TestInterruptOnIdleSessionIsHarmless(t *testing.T) {
	i := NewInterrupter(nil)
	s := NewPlaybackSession(DefaultJitterPolicy())

	i.Interrupt(s, ReasonUserActivity)
	i.Interrupt(s, ReasonUserActivity)

	assert.True(t, s.Quiet())
	assert.Equal(t, uint64(2), s.Generation)
}

func TestInterruptKeepsJitterPolicy(t *testing.T) {
	s := NewPlaybackSession(DefaultJitterPolicy())
	for n := 0; n < 3; n++ {
		s.Policy.Underrun()
	}

	NewInterrupter(nil).Interrupt(s, ReasonNewMessage)
	assert.Equal(t, 3, s.Policy.TargetDepth())
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "new-message", ReasonNewMessage.String())
	assert.Equal(t, "user-activity", ReasonUserActivity.String())
	assert.Equal(t, "shutdown", ReasonShutdown.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "chain", DisciplineChain.String())
}
