// ABOUTME: Audio encoder package for producing wire payloads
// ABOUTME: Provides Encoder interface and implementations for PCM16 and WAV
// Package encode turns normalized mono samples into wire payloads.
//
// Supports: raw PCM16 (the binary chunk format) and WAV clips (the encoded format)
//
// Example:
//
//	payload, err := encode.NewPCM16().Encode(samples)
//	clip, err := encode.NewWAV(24000).Encode(samples)
package encode
