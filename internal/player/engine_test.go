// ABOUTME: Tests for the playback engine event loop
// ABOUTME: Drives decode, scheduling, lip sync and interruption end to end
package player

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/lanlan-project/voicestage/internal/metrics"
	"github.com/lanlan-project/voicestage/pkg/audio/encode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() Config {
	c := DefaultConfig()
	c.Scheduler.PollInterval = 5 * time.Millisecond
	c.Scheduler.BufferingTimeout = 20 * time.Millisecond
	c.FrameInterval = 5 * time.Millisecond
	return c
}

// pcmPayload builds n little-endian samples of a constant value
func pcmPayload(n int, value int16) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(value))
	}
	return out
}

type engineFixture struct {
	engine *Engine
	dev    *fakeDevice
	target *fakeTarget
	cancel context.CancelFunc
	runErr chan error

	mu     sync.Mutex
	errors []error
}

func startEngine(t *testing.T) *engineFixture {
	t.Helper()
	return startEngineWith(t, testConfig())
}

func startEngineWith(t *testing.T, config Config) *engineFixture {
	t.Helper()

	f := &engineFixture{
		dev:    &fakeDevice{level: 0.05},
		target: newFakeTarget("ParamO", "ParamMouthOpenY"),
		runErr: make(chan error, 1),
	}
	open := func() (Device, error) { return f.dev, nil }
	f.engine = NewEngine(config, open, f.target, metrics.New(prometheus.NewRegistry()))
	f.engine.OnError = func(err error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.errors = append(f.errors, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.runErr <- f.engine.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-f.engine.Done():
		case <-time.After(waitFor):
			t.Error("engine did not stop")
		}
	})
	return f
}

func (f *engineFixture) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

func TestEngineInitialStats(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	stats := e.Stats()

	assert.NotEmpty(t, stats.SessionID)
	assert.Equal(t, StateIdle, stats.State)
	assert.Equal(t, 2, stats.TargetDepth)
	assert.Zero(t, stats.MouthOpenness)
}

func TestEnginePlaysBinaryChunksInOrder(t *testing.T) {
	f := startEngine(t)

	for seq := uint64(0); seq < 3; seq++ {
		require.True(t, f.engine.SubmitPCM(pcmPayload(4800, 1000), seq))
	}

	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 3 }, waitFor, tick)

	starts := f.dev.snapshot()
	assert.InDelta(t, 0.1, starts[0].at, 1e-9)
	for i := 1; i < len(starts); i++ {
		assert.Equal(t, uint64(i), starts[i].chunk.Sequence)
		assert.Equal(t, starts[i-1].at+starts[i-1].chunk.Duration(), starts[i].at)
	}

	require.Eventually(t, func() bool {
		v, ok := f.target.value("ParamO")
		return ok && v > 0.39
	}, waitFor, tick)

	stats := f.engine.Stats()
	assert.Equal(t, int64(3), stats.Received)
	assert.Equal(t, int64(3), stats.Played)
	assert.Equal(t, DisciplineTimer, stats.Discipline)
}

func TestEngineReturnsToIdleAndClosesMouth(t *testing.T) {
	f := startEngine(t)

	f.engine.SubmitPCM(pcmPayload(4800, 1000), 0)
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return f.engine.Stats().MouthOpenness > 0 }, waitFor, tick)

	f.dev.finishAll()

	require.Eventually(t, func() bool {
		s := f.engine.Stats()
		return s.State == StateIdle && s.Scheduled == 0 && s.MouthOpenness == 0
	}, waitFor, tick)

	v, _ := f.target.value("ParamMouthOpenY")
	assert.Zero(t, v)
	assert.Zero(t, f.engine.Stats().Underruns)
}

func TestEnginePlaysEncodedClips(t *testing.T) {
	f := startEngine(t)

	wav, err := encode.NewWAV(24000).Encode(make([]float32, 2400))
	require.NoError(t, err)
	b64 := base64.StdEncoding.EncodeToString(wav)

	require.True(t, f.engine.SubmitEncoded(b64))
	require.True(t, f.engine.SubmitEncoded(b64))

	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 1 }, waitFor, tick)
	assert.Equal(t, DisciplineChain, f.engine.Stats().Discipline)

	f.dev.finish(0)
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 2 }, waitFor, tick)
	starts := f.dev.snapshot()
	assert.Equal(t, starts[0].at+0.1, starts[1].at)

	f.dev.finish(1)
	require.Eventually(t, func() bool {
		s := f.engine.Stats()
		return s.State == StateIdle && s.Underruns == 1
	}, waitFor, tick)
}

func TestEngineDropsUndecodablePayloads(t *testing.T) {
	f := startEngine(t)

	f.engine.SubmitPCM(nil, 0)
	f.engine.SubmitEncoded("not base64 at all!")

	require.Eventually(t, func() bool { return f.engine.Stats().DecodeErrors == 2 }, waitFor, tick)
	assert.Equal(t, 2, f.errorCount())
	assert.Equal(t, StateIdle, f.engine.Stats().State)
	assert.Empty(t, f.dev.snapshot())
}

func TestEngineInterruptStopsPlayback(t *testing.T) {
	f := startEngine(t)

	for seq := uint64(0); seq < 3; seq++ {
		f.engine.SubmitPCM(pcmPayload(4800, 1000), seq)
	}
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 3 }, waitFor, tick)

	f.engine.Interrupt(ReasonUserActivity)

	require.Eventually(t, func() bool {
		s := f.engine.Stats()
		return s.Interruptions == 1 && s.Scheduled == 0 && s.BufferDepth == 0
	}, waitFor, tick)
	for _, s := range f.dev.snapshot() {
		assert.True(t, s.voice.stopped.Load())
	}
	assert.Zero(t, f.engine.Stats().MouthOpenness)
}

func TestEngineAudioBeforeInterruptNeverPlaysAfter(t *testing.T) {
	f := startEngine(t)

	// Distinct lengths tell the two submissions apart
	f.engine.SubmitPCM(pcmPayload(4800, 1000), 0)
	f.engine.Interrupt(ReasonNewMessage)
	f.engine.SubmitPCM(pcmPayload(2400, 1000), 0)

	require.Eventually(t, func() bool {
		for _, s := range f.dev.snapshot() {
			if len(s.chunk.Samples) == 2400 {
				return true
			}
		}
		return false
	}, waitFor, tick)

	for _, s := range f.dev.snapshot() {
		if len(s.chunk.Samples) == 4800 {
			assert.True(t, s.voice.stopped.Load(), "pre-interrupt audio must be stopped")
		} else {
			assert.False(t, s.voice.stopped.Load())
			assert.InDelta(t, 0.1, s.at, 1e-9, "fresh clock after interruption")
		}
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	f := startEngine(t)

	f.engine.SubmitPCM(pcmPayload(4800, 1000), 0)
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 1 }, waitFor, tick)

	f.cancel()
	select {
	case err := <-f.runErr:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("engine did not stop")
	}

	assert.True(t, f.dev.snapshot()[0].voice.stopped.Load())
	assert.False(t, f.engine.SubmitPCM(pcmPayload(10, 0), 1))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.FrameInterval = 0
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Jitter.MaxDepth = 1
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.IdleSuspend = -time.Second
	assert.Error(t, c.Validate())
}

func TestEngineSuspendsIdleDeviceAndResumesOnPlayback(t *testing.T) {
	config := testConfig()
	config.IdleSuspend = 20 * time.Millisecond
	f := startEngineWith(t, config)

	f.engine.SubmitPCM(pcmPayload(4800, 1000), 0)
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 1 }, waitFor, tick)
	assert.False(t, f.dev.Suspended(), "device runs while audio is scheduled")

	f.dev.finishAll()
	require.Eventually(t, f.dev.Suspended, waitFor, tick)
	assert.Equal(t, 1, f.dev.suspendCount())

	f.engine.SubmitPCM(pcmPayload(4800, 1000), 1)
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 2 }, waitFor, tick)
	assert.False(t, f.dev.Suspended(), "next commit resumes the device")
}

func TestEngineIdleSuspendDisabled(t *testing.T) {
	config := testConfig()
	config.IdleSuspend = 0
	f := startEngineWith(t, config)

	f.engine.SubmitPCM(pcmPayload(4800, 1000), 0)
	require.Eventually(t, func() bool { return len(f.dev.snapshot()) == 1 }, waitFor, tick)
	f.dev.finishAll()

	require.Eventually(t, func() bool { return f.engine.Stats().State == StateIdle }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.dev.suspendCount())
}
