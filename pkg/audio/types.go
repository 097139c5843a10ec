// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded chunks and sample conversions
package audio

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// BinarySampleRate is the fixed rate of raw PCM16 chunks on the wire
	BinarySampleRate = 48000
)

// Chunk is one decoded, single-channel unit of audio handed to the scheduler.
//
// Sequence is only meaningful when Sequenced is true (binary PCM path).
// Encoded clips arrive already ordered and carry no sequence number.
type Chunk struct {
	Sequence   uint64
	Sequenced  bool
	Samples    []float32 // normalized, roughly [-1, 1]
	SampleRate int
}

// Duration returns the playback length in seconds
func (c *Chunk) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Int16ToFloat normalizes a 16-bit sample by dividing by 32768
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / 32768.0
}

// FloatToInt16 converts a normalized sample back to 16-bit with clipping
func FloatToInt16(sample float32) int16 {
	scaled := sample * 32768.0
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

// Int24ToFloat normalizes a sign-extended 24-bit sample
func Int24ToFloat(sample int32) float32 {
	return float32(sample) / 8388608.0
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// Downmix averages interleaved frames into a single channel
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
