// ABOUTME: Malgo-based audio output backend
// ABOUTME: Uses miniaudio via malgo with a data callback that pulls from the mixer
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	src        io.Reader
	sampleRate int
	channels   int
	mu         sync.Mutex
}

// NewMalgo creates a new Malgo backend
func NewMalgo() Backend {
	return &Malgo{}
}

// Open initializes the playback device
func (m *Malgo) Open(sampleRate, channels int, src io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	m.src = src
	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels

	log.Info("Audio output initialized", "backend", "malgo", "rate", sampleRate, "channels", channels)

	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte) {
	n, _ := m.src.Read(pOutput)
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// Suspend stops the device callback
func (m *Malgo) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("output not initialized")
	}
	return m.device.Stop()
}

// Resume restarts the device callback
func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("output not initialized")
	}
	return m.device.Start()
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Warn("Device stop error", "err", err)
		}
		m.device.Uninit()
		m.device = nil
	}

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Warn("Malgo context uninit error", "err", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}
