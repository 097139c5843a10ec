// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes complete MP3 clips to mono samples
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/lanlan-project/voicestage/pkg/audio"
)

// MP3Decoder decodes MP3 clips
type MP3Decoder struct{}

// NewMP3 creates a new MP3 decoder
func NewMP3() Decoder {
	return &MP3Decoder{}
}

// Decode converts a whole MP3 clip.
// go-mp3 always produces interleaved 16-bit stereo.
func (d *MP3Decoder) Decode(data []byte) (*audio.Chunk, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	return &audio.Chunk{
		Samples:    audio.Downmix(int16Interleaved(pcm), 2),
		SampleRate: decoder.SampleRate(),
	}, nil
}
