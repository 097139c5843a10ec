// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests raw PCM16 wire payload decoding
package decode

import (
	"errors"
	"testing"

	"github.com/lanlan-project/voicestage/pkg/audio"
)

func TestDecodePCM16Silence(t *testing.T) {
	chunk, err := DecodePCM16(make([]byte, 9600), 7)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(chunk.Samples) != 4800 {
		t.Fatalf("expected 4800 samples, got %d", len(chunk.Samples))
	}
	for i, s := range chunk.Samples {
		if s != 0 {
			t.Fatalf("sample %d: expected 0.0, got %f", i, s)
		}
	}
	if chunk.Duration() != 0.1 {
		t.Errorf("expected duration 0.1, got %f", chunk.Duration())
	}
	if !chunk.Sequenced || chunk.Sequence != 7 {
		t.Errorf("expected sequenced chunk with seq 7, got %+v", chunk.Sequence)
	}
	if chunk.SampleRate != audio.BinarySampleRate {
		t.Errorf("expected rate %d, got %d", audio.BinarySampleRate, chunk.SampleRate)
	}
}

func TestDecodePCM16Values(t *testing.T) {
	// 16384 (0x4000) and -32768 (0x8000) little-endian
	payload := []byte{0x00, 0x40, 0x00, 0x80}

	chunk, err := DecodePCM16(payload, 0)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if chunk.Samples[0] != 0.5 {
		t.Errorf("expected 0.5, got %f", chunk.Samples[0])
	}
	if chunk.Samples[1] != -1.0 {
		t.Errorf("expected -1.0, got %f", chunk.Samples[1])
	}
}

func TestDecodePCM16OddTrailingByte(t *testing.T) {
	chunk, err := DecodePCM16([]byte{0, 0, 0, 0, 1}, 0)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(chunk.Samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(chunk.Samples))
	}
}

func TestDecodePCM16Empty(t *testing.T) {
	for _, payload := range [][]byte{nil, {}, {0x01}} {
		_, err := DecodePCM16(payload, 0)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("payload %v: expected ErrDecode, got %v", payload, err)
		}
	}
}
