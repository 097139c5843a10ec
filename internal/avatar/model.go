// ABOUTME: Animated model parameter table driven by lip-sync and expressions
// ABOUTME: Implements the player's AnimationTarget for a rig with a fixed parameter set
package avatar

import (
	"maps"
	"sync"
)

// Common rig parameter ids
const (
	ParamO          = "ParamO"
	ParamMouthOpenY = "ParamMouthOpenY"
	ParamEyeLOpen   = "ParamEyeLOpen"
	ParamEyeROpen   = "ParamEyeROpen"
)

// ExpressionNeutral is the resting expression
const ExpressionNeutral = "neutral"

// DefaultParameters is the rig used when none is configured
var DefaultParameters = []string{ParamO, ParamMouthOpenY, ParamEyeLOpen, ParamEyeROpen}

// State is a copy of the model's current pose
type State struct {
	Expression string
	Parameters map[string]float64
}

// Model holds the parameters a rig exposes. Writes to ids the rig does
// not have are rejected, so one lip-sync config can drive several rigs.
type Model struct {
	mu         sync.RWMutex
	params     map[string]float64
	expression string
	onChange   func(State)
}

// NewModel creates a model exposing the given parameter ids
func NewModel(parameterIDs ...string) *Model {
	if len(parameterIDs) == 0 {
		parameterIDs = DefaultParameters
	}

	params := make(map[string]float64, len(parameterIDs))
	for _, id := range parameterIDs {
		params[id] = 0
	}

	return &Model{
		params:     params,
		expression: ExpressionNeutral,
	}
}

// SetStateHandler sets the callback for expression changes
func (m *Model) SetStateHandler(handler func(State)) {
	m.mu.Lock()
	m.onChange = handler
	m.mu.Unlock()
}

// TrySetParameter writes value if the rig has id and reports whether it did
func (m *Model) TrySetParameter(id string, value float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.params[id]; !ok {
		return false
	}
	m.params[id] = value
	return true
}

// Parameter returns the current value of id
func (m *Model) Parameter(id string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.params[id]
	return v, ok
}

// SetExpression switches the named expression; empty resets to neutral
func (m *Model) SetExpression(name string) {
	if name == "" {
		name = ExpressionNeutral
	}

	m.mu.Lock()
	m.expression = name
	state := m.snapshotLocked()
	handler := m.onChange
	m.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

// Expression returns the active expression
func (m *Model) Expression() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expression
}

// Snapshot returns a copy of the current state
func (m *Model) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Model) snapshotLocked() State {
	return State{
		Expression: m.expression,
		Parameters: maps.Clone(m.params),
	}
}
