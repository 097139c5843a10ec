// ABOUTME: Oto-based audio output backend
// ABOUTME: Plays the mixer's PCM16 stream through a persistent oto player
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// otoBufferSize keeps the hardware lead small so the mixer clock tracks what is audible
const otoBufferSize = 40 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
}

// NewOto creates a new Oto backend
func NewOto() Backend {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int, src io.Reader) error {
	// oto allows one context per process
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Warn("Oto context already open with a different format",
				"have", fmt.Sprintf("%dHz/%dch", o.sampleRate, o.channels),
				"want", fmt.Sprintf("%dHz/%dch", sampleRate, channels))
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   otoBufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	// The mixer never blocks and never returns EOF, so one player lives forever
	o.player = o.otoCtx.NewPlayer(src)
	o.player.Play()

	log.Info("Audio output initialized", "backend", "oto", "rate", sampleRate, "channels", channels)

	return nil
}

// Suspend pauses the oto context
func (o *Oto) Suspend() error {
	if o.otoCtx == nil {
		return fmt.Errorf("output not initialized")
	}
	return o.otoCtx.Suspend()
}

// Resume restarts the oto context
func (o *Oto) Resume() error {
	if o.otoCtx == nil {
		return fmt.Errorf("output not initialized")
	}
	return o.otoCtx.Resume()
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
	}
	return nil
}
