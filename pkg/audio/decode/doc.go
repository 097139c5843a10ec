// ABOUTME: Audio decoder package for both wire formats
// ABOUTME: Provides ChunkDecoder plus WAV, MP3, FLAC and Ogg/Opus clip decoders
// Package decode turns wire payloads into audio chunks.
//
// Two wire formats exist:
//   - pcm16-binary: raw little-endian 16-bit mono at 48 kHz, sequenced by the caller
//   - encoded-base64: a self-contained clip (WAV, MP3, FLAC or Ogg/Opus), unsequenced
//
// Every failure is a *DecodeError and matches ErrDecode via errors.Is.
//
// Example:
//
//	chunk, err := decode.DecodePCM16(payload, seq)
//
//	dec := decode.NewChunkDecoder()
//	chunk, err = dec.DecodeEncoded(msg.AudioData)
package decode
