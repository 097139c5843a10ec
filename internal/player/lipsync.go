// ABOUTME: Lip-sync analyzer driving mouth parameters from output energy
// ABOUTME: Computes centered RMS of the analyser window at frame rate
package player

import (
	"fmt"
	"math"
)

// AnimationTarget is the animated model's parameter interface.
// TrySetParameter returns false for identifiers the model does not have.
type AnimationTarget interface {
	TrySetParameter(id string, value float64) bool
}

// Analyser exposes the most recent output samples
type Analyser interface {
	TimeDomain(dst []float32) int
}

// LipSyncConfig configures mouth-openness derivation
type LipSyncConfig struct {
	Gain       float64
	Window     int
	Parameters []string
}

// DefaultLipSyncConfig returns the stock gain, window and parameter ids
func DefaultLipSyncConfig() LipSyncConfig {
	return LipSyncConfig{
		Gain:       8,
		Window:     2048,
		Parameters: []string{"ParamO", "ParamMouthOpenY"},
	}
}

// Validate checks the lip-sync settings
func (c LipSyncConfig) Validate() error {
	if c.Gain <= 0 {
		return fmt.Errorf("lip-sync gain must be positive, got %f", c.Gain)
	}
	if c.Window <= 0 {
		return fmt.Errorf("lip-sync window must be positive, got %d", c.Window)
	}
	return nil
}

// LipSync writes mouth openness to an AnimationTarget while audio plays
type LipSync struct {
	config   LipSyncConfig
	target   AnimationTarget
	analyser Analyser
	window   []float32
	active   bool
	openness float64
}

// NewLipSync creates an inactive analyzer. target may be nil.
func NewLipSync(config LipSyncConfig, target AnimationTarget) *LipSync {
	return &LipSync{
		config: config,
		target: target,
		window: make([]float32, config.Window),
	}
}

// Start activates the frame loop against the shared analyser tap
func (l *LipSync) Start(analyser Analyser) {
	l.analyser = analyser
	l.active = true
}

// Active reports whether frame ticks should run
func (l *LipSync) Active() bool {
	return l.active
}

// Openness returns the last value written
func (l *LipSync) Openness() float64 {
	return l.openness
}

// Tick reads the analyser window and writes the current openness
func (l *LipSync) Tick() float64 {
	if !l.active || l.analyser == nil {
		return l.openness
	}

	n := l.analyser.TimeDomain(l.window)
	l.set(MouthOpenness(l.window[:n], l.config.Gain))
	return l.openness
}

// Stop writes zero to every parameter and deactivates the loop
func (l *LipSync) Stop() {
	l.active = false
	l.set(0)
}

func (l *LipSync) set(v float64) {
	l.openness = v
	if l.target == nil {
		return
	}
	for _, id := range l.config.Parameters {
		// Unknown ids are skipped by the target
		l.target.TrySetParameter(id, v)
	}
}

// MouthOpenness is the RMS of samples times gain, clamped to [0, 1].
// Samples are already centred on zero so no offset is removed.
func MouthOpenness(samples []float32, gain float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	v := math.Sqrt(sum/float64(len(samples))) * gain
	return math.Max(0, math.Min(1, v))
}
