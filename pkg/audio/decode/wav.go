// ABOUTME: WAV audio decoder
// ABOUTME: Parses RIFF/WAVE clips (integer PCM and IEEE float) to mono samples
package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lanlan-project/voicestage/pkg/audio"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// WAVDecoder decodes RIFF/WAVE clips
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV() Decoder {
	return &WAVDecoder{}
}

type wavFormat struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// Decode walks the RIFF chunks and converts the data chunk
func (d *WAVDecoder) Decode(data []byte) (*audio.Chunk, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("wav too short: %d bytes", len(data))
	}

	var format *wavFormat
	var pcm []byte

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := uint64(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		// Streamed WAVs often carry a bogus data size, so clamp before
		// narrowing to int
		end := len(data)
		if limit := uint64(body) + size; limit < uint64(end) {
			end = int(limit)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", end-body)
			}
			f := &wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(data[body:]),
				channels:      int(binary.LittleEndian.Uint16(data[body+2:])),
				sampleRate:    int(binary.LittleEndian.Uint32(data[body+4:])),
				bitsPerSample: int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			if f.audioFormat == wavFormatExtensible && end-body >= 26 {
				f.audioFormat = binary.LittleEndian.Uint16(data[body+24:])
			}
			format = f
		case "data":
			pcm = data[body:end]
		}

		// Chunks are word aligned
		pos = end + int(size&1)
	}

	if format == nil {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	if format.channels <= 0 || format.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav format: %d channels at %dHz", format.channels, format.sampleRate)
	}

	interleaved, err := wavSamples(format, pcm)
	if err != nil {
		return nil, err
	}

	return &audio.Chunk{
		Samples:    audio.Downmix(interleaved, format.channels),
		SampleRate: format.sampleRate,
	}, nil
}

// wavSamples converts the raw data chunk according to the fmt chunk
func wavSamples(f *wavFormat, pcm []byte) ([]float32, error) {
	switch {
	case f.audioFormat == wavFormatPCM && f.bitsPerSample == 8:
		out := make([]float32, len(pcm))
		for i, b := range pcm {
			// 8-bit WAV is unsigned
			out[i] = (float32(b) - 128) / 128
		}
		return out, nil

	case f.audioFormat == wavFormatPCM && f.bitsPerSample == 16:
		return int16Interleaved(pcm), nil

	case f.audioFormat == wavFormatPCM && f.bitsPerSample == 24:
		out := make([]float32, len(pcm)/3)
		for i := range out {
			b := [3]byte{pcm[i*3], pcm[i*3+1], pcm[i*3+2]}
			out[i] = audio.Int24ToFloat(audio.SampleFrom24Bit(b))
		}
		return out, nil

	case f.audioFormat == wavFormatPCM && f.bitsPerSample == 32:
		out := make([]float32, len(pcm)/4)
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(pcm[i*4:]))) / 2147483648.0
		}
		return out, nil

	case f.audioFormat == wavFormatFloat && f.bitsPerSample == 32:
		out := make([]float32, len(pcm)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[i*4:]))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", f.audioFormat, f.bitsPerSample)
	}
}
