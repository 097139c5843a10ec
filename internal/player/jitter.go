// ABOUTME: Jitter-adaptive buffer depth controller
// ABOUTME: Raises target depth after repeated underruns, lowers it after long stable runs
package player

import "fmt"

// JitterPolicy holds the bounds and thresholds for depth adaptation
type JitterPolicy struct {
	MinDepth          int
	MaxDepth          int
	InitialDepth      int
	UnderrunThreshold int
	StableThreshold   int
}

// DefaultJitterPolicy returns the stock depth policy
func DefaultJitterPolicy() JitterPolicy {
	return JitterPolicy{
		MinDepth:          2,
		MaxDepth:          8,
		InitialDepth:      2,
		UnderrunThreshold: 2,
		StableThreshold:   50,
	}
}

// Validate checks the policy bounds
func (p JitterPolicy) Validate() error {
	if p.MinDepth < 1 {
		return fmt.Errorf("min depth must be at least 1, got %d", p.MinDepth)
	}
	if p.MaxDepth < p.MinDepth {
		return fmt.Errorf("max depth %d is below min depth %d", p.MaxDepth, p.MinDepth)
	}
	if p.InitialDepth < p.MinDepth || p.InitialDepth > p.MaxDepth {
		return fmt.Errorf("initial depth %d outside [%d, %d]", p.InitialDepth, p.MinDepth, p.MaxDepth)
	}
	if p.UnderrunThreshold < 0 || p.StableThreshold < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}
	return nil
}

// JitterController adapts the chained path's start depth
type JitterController struct {
	policy      JitterPolicy
	targetDepth int
	underruns   int
	stable      int
}

// NewJitterController creates a controller at the policy's initial depth
func NewJitterController(policy JitterPolicy) *JitterController {
	return &JitterController{
		policy:      policy,
		targetDepth: policy.InitialDepth,
	}
}

// TargetDepth returns how many chunks must be queued before the chain starts
func (j *JitterController) TargetDepth() int {
	return j.targetDepth
}

// Underrun records an empty buffer at chain time. Returns true if the
// target depth changed.
func (j *JitterController) Underrun() bool {
	j.underruns++
	if j.underruns <= j.policy.UnderrunThreshold {
		return false
	}

	j.underruns = 0
	if j.targetDepth >= j.policy.MaxDepth {
		return false
	}
	j.targetDepth++
	return true
}

// StableDelivery records a chunk that finished with more audio queued.
// Returns true if the target depth changed.
func (j *JitterController) StableDelivery() bool {
	j.stable++
	if j.stable <= j.policy.StableThreshold || j.targetDepth <= j.policy.MinDepth {
		return false
	}

	j.stable = 0
	j.targetDepth--
	return true
}
