// ABOUTME: Linear resampler for mono float chunks
// ABOUTME: Converts whole decoded chunks to the output device rate
package resample

import "math"

// Resampler performs linear interpolation between two fixed rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts a complete mono chunk. The output keeps the
// chunk's duration, so a chunk of n input samples produces
// OutputSamplesNeeded(n) output samples.
func (r *Resampler) Resample(input []float32) []float32 {
	if len(input) == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	n := r.OutputSamplesNeeded(len(input))
	output := make([]float32, n)
	last := len(input) - 1

	for i := range output {
		pos := float64(i) * r.ratio
		idx := int(pos)
		if idx >= last {
			// Hold the final sample past the end of input
			output[i] = input[last]
			continue
		}

		frac := float32(pos - float64(idx))
		output[i] = input[idx]*(1-frac) + input[idx+1]*frac
	}

	return output
}

// OutputSamplesNeeded calculates how many output samples a chunk of
// inputSamples produces
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	return int(math.Round(float64(inputSamples) / r.ratio))
}

// Convert is a one-shot helper for callers that do not keep a Resampler
func Convert(input []float32, inputRate, outputRate int) []float32 {
	if inputRate <= 0 || outputRate <= 0 {
		return nil
	}
	return New(inputRate, outputRate).Resample(input)
}
