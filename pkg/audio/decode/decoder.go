// ABOUTME: Chunk decoder entry points for both wire formats
// ABOUTME: Turns raw PCM16 payloads or base64 encoded clips into mono audio chunks
package decode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/lanlan-project/voicestage/pkg/audio"
)

// Wire format tags
const (
	FormatPCM16Binary   = "pcm16-binary"
	FormatEncodedBase64 = "encoded-base64"
)

// ErrDecode matches every DecodeError via errors.Is
var ErrDecode = errors.New("decode error")

var errEmptyPayload = errors.New("empty payload")

// DecodeError reports a payload that could not be turned into a chunk
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Decoder decodes one self-contained encoded clip to a mono chunk
type Decoder interface {
	// Decode converts a complete encoded clip to an unsequenced chunk
	Decode(data []byte) (*audio.Chunk, error)
}

// ChunkDecoder dispatches payloads by wire format and sniffed container
type ChunkDecoder struct {
	wav  Decoder
	mp3  Decoder
	flac Decoder
	opus Decoder
}

// NewChunkDecoder creates a decoder with every supported container registered
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{
		wav:  NewWAV(),
		mp3:  NewMP3(),
		flac: NewFLAC(),
		opus: NewOpus(),
	}
}

// Decode accepts a payload plus its format tag. For the binary format seq is
// assigned to the chunk; for the encoded format it is ignored.
func (d *ChunkDecoder) Decode(format string, payload []byte, seq uint64) (*audio.Chunk, error) {
	switch format {
	case FormatPCM16Binary:
		return DecodePCM16(payload, seq)
	case FormatEncodedBase64:
		return d.DecodeEncoded(string(payload))
	default:
		return nil, &DecodeError{Format: format, Err: fmt.Errorf("unsupported format tag")}
	}
}

// DecodeEncoded base64-decodes a clip and hands it to the matching container decoder
func (d *ChunkDecoder) DecodeEncoded(encoded string) (*audio.Chunk, error) {
	if encoded == "" {
		return nil, &DecodeError{Format: FormatEncodedBase64, Err: errEmptyPayload}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DecodeError{Format: FormatEncodedBase64, Err: fmt.Errorf("invalid base64: %w", err)}
	}

	return d.DecodeClip(data)
}

// DecodeClip sniffs the container of raw clip bytes and decodes it
func (d *ChunkDecoder) DecodeClip(data []byte) (*audio.Chunk, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: FormatEncodedBase64, Err: errEmptyPayload}
	}

	container := Sniff(data)
	var dec Decoder
	switch container {
	case "wav":
		dec = d.wav
	case "flac":
		dec = d.flac
	case "opus":
		dec = d.opus
	case "mp3":
		dec = d.mp3
	default:
		return nil, &DecodeError{Format: FormatEncodedBase64, Err: fmt.Errorf("unrecognized container")}
	}

	chunk, err := dec.Decode(data)
	if err != nil {
		return nil, &DecodeError{Format: container, Err: err}
	}
	if len(chunk.Samples) == 0 {
		return nil, &DecodeError{Format: container, Err: fmt.Errorf("no samples decoded")}
	}
	return chunk, nil
}

// Sniff identifies the container of an encoded clip from its magic bytes
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")) && bytes.Contains(data[:min(len(data), 512)], []byte("OpusHead")):
		return "opus"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return "mp3"
	default:
		return ""
	}
}
