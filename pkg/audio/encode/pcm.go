// ABOUTME: PCM audio encoder
// ABOUTME: Encodes normalized samples to little-endian 16-bit PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/lanlan-project/voicestage/pkg/audio"
)

// PCM16Encoder encodes raw PCM16
type PCM16Encoder struct{}

// NewPCM16 creates a new PCM16 encoder
func NewPCM16() Encoder {
	return &PCM16Encoder{}
}

// Encode converts samples to PCM16 bytes
func (e *PCM16Encoder) Encode(samples []float32) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.FloatToInt16(sample)))
	}
	return output, nil
}
