// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes complete FLAC clips to mono samples using mewkiz/flac
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC clips
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC() Decoder {
	return &FLACDecoder{}
}

// Decode parses every frame of the clip and averages the channels
func (d *FLACDecoder) Decode(data []byte) (*audio.Chunk, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bps := int(stream.Info.BitsPerSample)
	if channels == 0 || bps == 0 {
		return nil, fmt.Errorf("invalid flac stream info: %d channels, %d bits", channels, bps)
	}
	scale := float32(int64(1) << (bps - 1))

	samples := make([]float32, 0, stream.Info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame decode failed: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			var sum float32
			for ch := 0; ch < len(frame.Subframes); ch++ {
				sum += float32(frame.Subframes[ch].Samples[i]) / scale
			}
			samples = append(samples, sum/float32(len(frame.Subframes)))
		}
	}

	return &audio.Chunk{
		Samples:    samples,
		SampleRate: int(stream.Info.SampleRate),
	}, nil
}
