// ABOUTME: Sequencing buffer for decoded chunks awaiting playback
// ABOUTME: Restores producer order for sequenced chunks by insertion sort
package player

import "github.com/lanlan-project/voicestage/pkg/audio"

// SequencingBuffer holds decoded chunks in playback order.
// Sequenced chunks stay sorted by sequence among themselves; unsequenced
// chunks keep arrival order. The buffer is unbounded.
type SequencingBuffer struct {
	items []*audio.Chunk
}

// NewSequencingBuffer creates an empty buffer
func NewSequencingBuffer() *SequencingBuffer {
	return &SequencingBuffer{}
}

// Insert places a chunk. A sequenced chunk goes before the earliest
// sequenced entry with a higher sequence; everything else is appended.
// Equal sequences keep arrival order.
func (b *SequencingBuffer) Insert(c *audio.Chunk) {
	if c == nil {
		return
	}

	pos := len(b.items)
	if c.Sequenced {
		// Reordering windows are small, so scan back from the tail
		for i := len(b.items) - 1; i >= 0; i-- {
			other := b.items[i]
			if !other.Sequenced {
				continue
			}
			if other.Sequence <= c.Sequence {
				break
			}
			pos = i
		}
	}

	b.items = append(b.items, nil)
	copy(b.items[pos+1:], b.items[pos:])
	b.items[pos] = c
}

// PopFront removes and returns the earliest chunk; false means empty
func (b *SequencingBuffer) PopFront() (*audio.Chunk, bool) {
	if len(b.items) == 0 {
		return nil, false
	}
	c := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return c, true
}

// Peek returns the earliest chunk without removing it
func (b *SequencingBuffer) Peek() (*audio.Chunk, bool) {
	if len(b.items) == 0 {
		return nil, false
	}
	return b.items[0], true
}

// Clear discards every queued chunk
func (b *SequencingBuffer) Clear() {
	b.items = nil
}

// Len returns the number of queued chunks
func (b *SequencingBuffer) Len() int {
	return len(b.items)
}
