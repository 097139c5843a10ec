// ABOUTME: Audio output package for scheduled playback
// ABOUTME: Provides the Mixer device clock and oto, malgo and null backends
// Package output provides a sample-accurate playback device.
//
// The Mixer owns the device clock (frames rendered so far), mixes scheduled
// voices at exact frame offsets and keeps a ring of the most recent mixed
// samples for level analysis. A Backend pulls mixed audio from the Mixer.
//
// Example:
//
//	backend, err := output.NewBackend("oto")
//	mixer := output.NewMixer(backend, output.MixerConfig{SampleRate: 48000, Channels: 2})
//	err = mixer.Open()
//	voice, err := mixer.Start(chunk, mixer.Now()+0.1, func() { fmt.Println("done") })
package output
