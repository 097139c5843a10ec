// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

// Encoder encodes normalized mono samples
type Encoder interface {
	// Encode converts samples to wire bytes
	Encode(samples []float32) ([]byte, error)
}
