// ABOUTME: Per-connection utterance streamer for the demo producer
// ABOUTME: Splits utterances into binary PCM frames or base64 WAV clips and paces them
package producer

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/lanlan-project/voicestage/internal/protocol"
	"github.com/lanlan-project/voicestage/pkg/audio/encode"
)

// Stream modes
const (
	ModePCM     = "pcm"
	ModeEncoded = "encoded"
)

// StreamConfig controls how utterances are sent
type StreamConfig struct {
	// Mode is pcm (binary frames) or encoded (cozy_audio WAV clips)
	Mode string
	// ChunkDuration is the length of each frame or clip
	ChunkDuration time.Duration
	// Pace scales the wall time between frames; below 1 sends faster than real time
	Pace float64
	// Jitter adds a random extra delay in [0, Jitter) before each frame
	Jitter time.Duration
	// Gap is the silence between utterances
	Gap time.Duration
	// BargeInEvery sends user_activity halfway through every Nth utterance; 0 disables
	BargeInEvery int
	// Expressions are cycled, one per utterance
	Expressions []string
}

// DefaultStreamConfig returns the stock streaming behavior
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Mode:          ModePCM,
		ChunkDuration: 100 * time.Millisecond,
		Pace:          1.0,
		Gap:           1500 * time.Millisecond,
		Expressions:   []string{"happy", "neutral"},
	}
}

// Validate checks the stream settings
func (c StreamConfig) Validate() error {
	if c.Mode != ModePCM && c.Mode != ModeEncoded {
		return fmt.Errorf("unknown stream mode %q (supported: pcm, encoded)", c.Mode)
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk duration must be positive, got %v", c.ChunkDuration)
	}
	if c.Pace < 0 {
		return fmt.Errorf("pace must not be negative, got %f", c.Pace)
	}
	if c.Jitter < 0 || c.Gap < 0 || c.BargeInEvery < 0 {
		return fmt.Errorf("jitter, gap and barge-in interval must not be negative")
	}
	return nil
}

// Frame is one outbound message: Binary when set, otherwise Message as JSON
type Frame struct {
	Binary  []byte
	Message protocol.Message
}

// StreamStats counts what a streamer has sent
type StreamStats struct {
	Utterances atomic.Int64
	Chunks     atomic.Int64
	BargeIns   atomic.Int64
}

// Streamer sends utterances from a source to one connection
type Streamer struct {
	config StreamConfig
	source Source
	pcm    encode.Encoder
	wav    encode.Encoder
	stats  *StreamStats
}

// NewStreamer creates a streamer. stats may be shared across connections.
func NewStreamer(config StreamConfig, source Source, stats *StreamStats) *Streamer {
	if stats == nil {
		stats = &StreamStats{}
	}
	return &Streamer{
		config: config,
		source: source,
		pcm:    encode.NewPCM16(),
		wav:    encode.NewWAV(SampleRate),
		stats:  stats,
	}
}

// Run streams until ctx ends or send fails
func (s *Streamer) Run(ctx context.Context, send func(Frame) error) error {
	for n := 0; ; n++ {
		if err := s.sendUtterance(ctx, n, send); err != nil {
			return err
		}
		if err := sleep(ctx, s.config.Gap); err != nil {
			return nil
		}
	}
}

func (s *Streamer) sendUtterance(ctx context.Context, n int, send func(Frame) error) error {
	u := s.source.Next()
	s.stats.Utterances.Add(1)

	if err := send(Frame{Message: protocol.NewGeminiResponse(u.Text, true)}); err != nil {
		return err
	}
	if len(s.config.Expressions) > 0 {
		expr := s.config.Expressions[n%len(s.config.Expressions)]
		if err := send(Frame{Message: protocol.Message{Type: protocol.TypeExpression, Message: expr}}); err != nil {
			return err
		}
	}

	pieces := split(u.Samples, int(s.config.ChunkDuration.Seconds()*SampleRate))
	bargeIn := s.config.BargeInEvery > 0 && n%s.config.BargeInEvery == s.config.BargeInEvery-1

	for i, piece := range pieces {
		if bargeIn && i == len(pieces)/2 {
			s.stats.BargeIns.Add(1)
			return send(Frame{Message: protocol.NewUserActivity()})
		}

		frame, err := s.encode(piece, i == 0)
		if err != nil {
			return err
		}
		if err := send(frame); err != nil {
			return err
		}
		s.stats.Chunks.Add(1)

		if err := sleep(ctx, s.delay(len(piece))); err != nil {
			return nil
		}
	}
	return nil
}

// encode renders one piece in the configured wire format
func (s *Streamer) encode(piece []float32, first bool) (Frame, error) {
	if s.config.Mode == ModeEncoded {
		clip, err := s.wav.Encode(piece)
		if err != nil {
			return Frame{}, fmt.Errorf("failed to encode clip: %w", err)
		}
		return Frame{Message: protocol.NewCozyAudio(base64.StdEncoding.EncodeToString(clip), first)}, nil
	}

	payload, err := s.pcm.Encode(piece)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode pcm: %w", err)
	}
	return Frame{Binary: payload}, nil
}

// delay is the wall time to wait after sending n samples
func (s *Streamer) delay(n int) time.Duration {
	d := time.Duration(float64(n) / SampleRate * s.config.Pace * float64(time.Second))
	if s.config.Jitter > 0 {
		d += rand.N(s.config.Jitter)
	}
	return d
}

// split cuts samples into pieces of size, the last one possibly shorter
func split(samples []float32, size int) [][]float32 {
	if size <= 0 {
		size = len(samples)
	}
	var pieces [][]float32
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		pieces = append(pieces, samples[start:end])
	}
	return pieces
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
