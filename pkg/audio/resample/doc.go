// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts mono chunks between sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling, one whole chunk at a time.
//
// Example:
//
//	r := resample.New(24000, 48000)
//	out := r.Resample(chunk.Samples)
package resample
