// ABOUTME: Null audio output backend
// ABOUTME: Pulls from the mixer in real time and discards the audio
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const nullTick = 10 * time.Millisecond

// Null renders at wall-clock pace without a sound card
type Null struct {
	mu        sync.Mutex
	src       io.Reader
	frameSize int
	rate      int
	suspended bool
	stop      chan struct{}
	done      chan struct{}
}

// NewNull creates a headless backend
func NewNull() Backend {
	return &Null{}
}

// Open starts the pacing goroutine
func (n *Null) Open(sampleRate, channels int, src io.Reader) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop != nil {
		return nil
	}
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid format: %dHz %dch", sampleRate, channels)
	}

	n.src = src
	n.rate = sampleRate
	n.frameSize = 2 * channels
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.run()

	log.Info("Audio output initialized", "backend", "none", "rate", sampleRate, "channels", channels)
	return nil
}

func (n *Null) run() {
	defer close(n.done)

	ticker := time.NewTicker(nullTick)
	defer ticker.Stop()

	last := time.Now()
	var owed float64
	buf := make([]byte, 0)

	for {
		select {
		case <-n.stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			n.mu.Lock()
			suspended := n.suspended
			n.mu.Unlock()
			if suspended {
				continue
			}

			owed += elapsed.Seconds() * float64(n.rate)
			frames := int(owed)
			owed -= float64(frames)
			if frames == 0 {
				continue
			}

			size := frames * n.frameSize
			if cap(buf) < size {
				buf = make([]byte, size)
			}
			if _, err := n.src.Read(buf[:size]); err != nil {
				log.Warn("Null output read failed", "err", err)
			}
		}
	}
}

// Suspend stops the clock
func (n *Null) Suspend() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspended = true
	return nil
}

// Resume restarts the clock
func (n *Null) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspended = false
	return nil
}

// Close stops the pacing goroutine
func (n *Null) Close() error {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-n.done
	}
	return nil
}
