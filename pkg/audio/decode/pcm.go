// ABOUTME: PCM audio decoder
// ABOUTME: Decodes raw little-endian 16-bit PCM wire payloads to normalized samples
package decode

import (
	"encoding/binary"

	"github.com/lanlan-project/voicestage/pkg/audio"
)

// DecodePCM16 converts a raw mono PCM16 payload into a sequenced 48 kHz chunk.
// A trailing odd byte is ignored.
func DecodePCM16(payload []byte, seq uint64) (*audio.Chunk, error) {
	numSamples := len(payload) / 2
	if numSamples == 0 {
		return nil, &DecodeError{Format: FormatPCM16Binary, Err: errEmptyPayload}
	}

	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(payload[i*2:]))
		samples[i] = audio.Int16ToFloat(sample16)
	}

	return &audio.Chunk{
		Sequence:   seq,
		Sequenced:  true,
		Samples:    samples,
		SampleRate: audio.BinarySampleRate,
	}, nil
}

// int16Interleaved converts little-endian 16-bit bytes to normalized floats
func int16Interleaved(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out
}
