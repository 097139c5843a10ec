// ABOUTME: Output backend interface and device errors
// ABOUTME: Backends pull interleaved PCM16 from the mixer at the device rate
package output

import (
	"errors"
	"fmt"
	"io"
)

// ErrDevice matches every DeviceError via errors.Is
var ErrDevice = errors.New("device error")

// DeviceError reports an output device that could not be opened or resumed
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

// Backend represents a physical (or simulated) audio output device
type Backend interface {
	// Open starts pulling interleaved little-endian 16-bit frames from src
	Open(sampleRate, channels int, src io.Reader) error

	// Suspend pauses the device; the mixer clock stops advancing
	Suspend() error

	// Resume restarts a suspended device
	Resume() error

	// Close releases output resources
	Close() error
}

// NewBackend creates a backend by name: "oto", "malgo" or "none"
func NewBackend(name string) (Backend, error) {
	switch name {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "none":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (supported: oto, malgo, none)", name)
	}
}
