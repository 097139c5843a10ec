// ABOUTME: Tests decoding real FLAC, MP3 and Ogg/Opus clips
// ABOUTME: Checks sample rate, mono sample count and channel downmix per container
package decode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return data
}

// encodeStereoFLAC writes a 16-bit stereo FLAC stream with one frame
func encodeStereoFLAC(t *testing.T, left, right []int32) []byte {
	t.Helper()
	const rate = 48000
	n := len(left)

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, &meta.StreamInfo{
		BlockSizeMin:  uint16(n),
		BlockSizeMax:  uint16(n),
		SampleRate:    rate,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      uint64(n),
	})
	if err != nil {
		t.Fatalf("failed to create flac encoder: %v", err)
	}

	f := &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: true,
			BlockSize:         uint16(n),
			SampleRate:        rate,
			Channels:          frame.ChannelsLR,
			BitsPerSample:     16,
		},
		Subframes: []*frame.Subframe{
			{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: left, NSamples: n},
			{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: right, NSamples: n},
		},
	}
	if err := enc.WriteFrame(f); err != nil {
		t.Fatalf("failed to write flac frame: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close flac encoder: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeClipFLACStereo(t *testing.T) {
	const n = 1024
	left := make([]int32, n)
	right := make([]int32, n)
	for i := range left {
		left[i] = int32(i * 16)
		right[i] = -int32(i * 8)
	}
	data := encodeStereoFLAC(t, left, right)

	if got := Sniff(data); got != "flac" {
		t.Fatalf("expected flac container, got %q", got)
	}

	chunk, err := NewChunkDecoder().DecodeClip(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if chunk.SampleRate != 48000 {
		t.Errorf("expected rate 48000, got %d", chunk.SampleRate)
	}
	if len(chunk.Samples) != n {
		t.Fatalf("expected %d mono samples, got %d", n, len(chunk.Samples))
	}
	for i, got := range chunk.Samples {
		want := (float64(left[i]) + float64(right[i])) / 2 / 32768
		if math.Abs(float64(got)-want) > 1e-6 {
			t.Fatalf("sample %d: expected %f, got %f", i, want, got)
		}
	}
}

func TestDecodeClipMP3Downmix(t *testing.T) {
	data := readFixture(t, "speech.mp3")
	if got := Sniff(data); got != "mp3" {
		t.Fatalf("expected mp3 container, got %q", got)
	}

	chunk, err := NewChunkDecoder().DecodeClip(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// go-mp3 always yields interleaved 16-bit stereo
	ref, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reference decoder failed: %v", err)
	}
	raw, err := io.ReadAll(ref)
	if err != nil {
		t.Fatalf("reference decode failed: %v", err)
	}

	if chunk.SampleRate != 22050 {
		t.Errorf("expected rate 22050, got %d", chunk.SampleRate)
	}
	frames := len(raw) / 4
	if frames == 0 {
		t.Fatal("reference decode produced no audio")
	}
	if len(chunk.Samples) != frames {
		t.Fatalf("expected %d mono samples, got %d", frames, len(chunk.Samples))
	}

	var energy float64
	for i := 0; i < frames; i++ {
		l := float64(int16(binary.LittleEndian.Uint16(raw[i*4:]))) / 32768
		r := float64(int16(binary.LittleEndian.Uint16(raw[i*4+2:]))) / 32768
		want := (l + r) / 2
		if math.Abs(float64(chunk.Samples[i])-want) > 1e-6 {
			t.Fatalf("sample %d: expected %f, got %f", i, want, chunk.Samples[i])
		}
		energy += want * want
	}
	if energy == 0 {
		t.Error("expected audible speech in the fixture")
	}
}

func TestDecodeClipOggOpus(t *testing.T) {
	data := readFixture(t, "speech.opus")
	if got := Sniff(data); got != "opus" {
		t.Fatalf("expected opus container, got %q", got)
	}

	channels, err := opusChannels(data)
	if err != nil {
		t.Fatalf("failed to read OpusHead: %v", err)
	}
	if channels != 1 {
		t.Fatalf("expected a mono fixture, got %d channels", channels)
	}

	chunk, err := NewChunkDecoder().DecodeClip(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if chunk.SampleRate != 48000 {
		t.Errorf("expected rate 48000, got %d", chunk.SampleRate)
	}
	// The fixture holds 10.8s of speech
	if d := chunk.Duration(); math.Abs(d-10.8) > 0.05 {
		t.Errorf("expected about 10.8s, got %fs", d)
	}
	for i, v := range chunk.Samples {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of range: %f", i, v)
		}
	}
}

func TestOpusChannelsFromHeader(t *testing.T) {
	head := append([]byte("OggS...."), []byte("OpusHead\x01\x02\x38\x01")...)
	channels, err := opusChannels(head)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channels != 2 {
		t.Errorf("expected 2 channels, got %d", channels)
	}

	if _, err := opusChannels([]byte("OggS")); err == nil {
		t.Error("expected error without OpusHead")
	}
	if _, err := opusChannels([]byte("OpusHead\x01\x00")); err == nil {
		t.Error("expected error for zero channels")
	}
}
