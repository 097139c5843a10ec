// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Chunk type and sample conversion functions
// Package audio provides the fundamental audio types shared by the voicestage pipeline.
//
// Chunk is one decoded, mono unit of audio with an optional sequence number.
// The package also provides sample conversions between 16/24-bit integers and normalized floats,
// plus a simple channel downmix.
//
// Example:
//
//	chunk := &audio.Chunk{
//	    Sequence:   7,
//	    Sequenced:  true,
//	    Samples:    samples,
//	    SampleRate: audio.BinarySampleRate,
//	}
//	seconds := chunk.Duration()
package audio
