// ABOUTME: Utterance sources for the demo producer
// ABOUTME: Generates speech-like tone bursts or loads clips from audio files
package producer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/lanlan-project/voicestage/pkg/audio/decode"
	"github.com/lanlan-project/voicestage/pkg/audio/resample"
)

// SampleRate is the rate every utterance is produced at
const SampleRate = audio.BinarySampleRate

// Utterance is one reply: the text it speaks and its mono samples
type Utterance struct {
	Text    string
	Samples []float32
}

// Duration returns the utterance length in seconds
func (u Utterance) Duration() float64 {
	return float64(len(u.Samples)) / SampleRate
}

// Source yields utterances in order, cycling forever
type Source interface {
	Next() Utterance
	// Title describes the source for display
	Title() string
}

// NewSource creates a clip source when paths are given, otherwise tones
func NewSource(paths []string) (Source, error) {
	if len(paths) == 0 {
		return NewToneSource(nil), nil
	}
	return NewClipSource(paths)
}

var defaultPhrases = []string{
	"Hello there, it is nice to hear from you.",
	"Let me think about that for a moment.",
	"I can keep talking while you listen.",
	"Interrupt me whenever you like.",
}

// ToneSource generates syllable-shaped tone bursts, one per word
type ToneSource struct {
	phrases []string
	next    int
	mu      sync.Mutex

	// Carrier pitch and syllable length
	frequency float64
	syllable  float64
}

// NewToneSource creates a tone generator speaking phrases
func NewToneSource(phrases []string) *ToneSource {
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}
	return &ToneSource{
		phrases:   phrases,
		frequency: 220.0,
		syllable:  0.25,
	}
}

// Next renders the next phrase
func (s *ToneSource) Next() Utterance {
	s.mu.Lock()
	text := s.phrases[s.next]
	s.next = (s.next + 1) % len(s.phrases)
	s.mu.Unlock()

	words := len(strings.Fields(text))
	n := int(float64(words) * s.syllable * SampleRate)
	samples := make([]float32, n)

	for i := range samples {
		t := float64(i) / SampleRate
		// Half-sine envelope per syllable so the mouth opens and closes
		phase := math.Mod(t, s.syllable) / s.syllable
		env := math.Sin(math.Pi * phase)
		// Pitch glides a little within each syllable
		f := s.frequency * (1 + 0.1*phase)
		samples[i] = float32(0.5 * env * math.Sin(2*math.Pi*f*t))
	}

	return Utterance{Text: text, Samples: samples}
}

// Title describes the source
func (s *ToneSource) Title() string {
	return fmt.Sprintf("Test tones (%.0fHz)", s.frequency)
}

// ClipSource replays decoded audio files
type ClipSource struct {
	clips []Utterance
	next  int
	mu    sync.Mutex
}

// NewClipSource decodes every file up front. WAV, MP3, FLAC and
// Ogg/Opus files are accepted and converted to 48kHz mono.
func NewClipSource(paths []string) (*ClipSource, error) {
	dec := decode.NewChunkDecoder()
	clips := make([]Utterance, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read clip: %w", err)
		}

		chunk, err := dec.DecodeClip(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}

		samples := chunk.Samples
		if chunk.SampleRate != SampleRate {
			samples = resample.Convert(samples, chunk.SampleRate, SampleRate)
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		log.Infof("Loaded clip %s: %.2fs at %dHz", name, chunk.Duration(), chunk.SampleRate)
		clips = append(clips, Utterance{Text: name, Samples: samples})
	}

	if len(clips) == 0 {
		return nil, fmt.Errorf("no clips given")
	}
	return &ClipSource{clips: clips}, nil
}

// Next returns the next clip
func (s *ClipSource) Next() Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.clips[s.next]
	s.next = (s.next + 1) % len(s.clips)
	return u
}

// Title describes the source
func (s *ClipSource) Title() string {
	return fmt.Sprintf("%d clip(s)", len(s.clips))
}
