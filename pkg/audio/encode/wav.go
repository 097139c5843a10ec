// ABOUTME: WAV audio encoder
// ABOUTME: Wraps 16-bit mono PCM in a RIFF/WAVE container
package encode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte PCM header
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WAVEncoder encodes mono 16-bit WAV clips
type WAVEncoder struct {
	sampleRate int
}

// NewWAV creates a WAV encoder for the given sample rate
func NewWAV(sampleRate int) Encoder {
	return &WAVEncoder{sampleRate: sampleRate}
}

// Encode builds a complete WAV file
func (e *WAVEncoder) Encode(samples []float32) ([]byte, error) {
	if e.sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", e.sampleRate)
	}

	pcm, err := NewPCM16().Encode(samples)
	if err != nil {
		return nil, err
	}

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(e.sampleRate),
		ByteRate:      uint32(e.sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}
