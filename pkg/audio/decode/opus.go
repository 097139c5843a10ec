// ABOUTME: Ogg/Opus audio decoder
// ABOUTME: Decodes complete Ogg/Opus clips to mono samples via libopusfile
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/lanlan-project/voicestage/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// opusfile always decodes at 48 kHz regardless of the original input rate
const opusSampleRate = 48000

// OpusDecoder decodes Ogg/Opus clips
type OpusDecoder struct{}

// NewOpus creates a new Opus decoder
func NewOpus() Decoder {
	return &OpusDecoder{}
}

// Decode reads the whole stream and downmixes it
func (d *OpusDecoder) Decode(data []byte) (*audio.Chunk, error) {
	channels, err := opusChannels(data)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	// 120ms max frame per read
	pcm := make([]float32, 5760*channels)
	var interleaved []float32
	for {
		n, err := stream.ReadFloat32(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		interleaved = append(interleaved, pcm[:n*channels]...)
	}

	return &audio.Chunk{
		Samples:    audio.Downmix(interleaved, channels),
		SampleRate: opusSampleRate,
	}, nil
}

// opusChannels reads the channel count from the OpusHead identification header
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, []byte("OpusHead"))
	if idx < 0 || idx+10 > len(data) {
		return 0, fmt.Errorf("missing OpusHead header")
	}
	channels := int(data[idx+9])
	if channels == 0 {
		return 0, fmt.Errorf("invalid opus channel count")
	}
	return channels, nil
}
