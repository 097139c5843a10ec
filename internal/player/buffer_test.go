// ABOUTME: Tests for the sequencing buffer
// ABOUTME: Verifies reordering, arrival order for unsequenced chunks and clearing
package player

import (
	"math/rand"
	"testing"

	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(b *SequencingBuffer) []*audio.Chunk {
	var out []*audio.Chunk
	for {
		c, ok := b.PopFront()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestBufferReordersOutOfOrderArrivals(t *testing.T) {
	b := NewSequencingBuffer()
	for _, seq := range []uint64{2, 0, 1} {
		b.Insert(seqChunk(seq, 0.1))
	}

	got := drain(b)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, uint64(i), c.Sequence)
	}
}

func TestBufferRandomPermutationsPopInOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(20)
		b := NewSequencingBuffer()
		for _, i := range rng.Perm(n) {
			b.Insert(seqChunk(uint64(i), 0.01))
		}

		got := drain(b)
		require.Len(t, got, n)
		for i, c := range got {
			assert.Equal(t, uint64(i), c.Sequence, "trial %d", trial)
		}
	}
}

func TestBufferUnsequencedKeepArrivalOrder(t *testing.T) {
	b := NewSequencingBuffer()
	first, second, third := clip(0.1), clip(0.2), clip(0.3)
	b.Insert(first)
	b.Insert(second)
	b.Insert(third)

	got := drain(b)
	assert.Same(t, first, got[0])
	assert.Same(t, second, got[1])
	assert.Same(t, third, got[2])
}

func TestBufferMixedKeepsSequencedSorted(t *testing.T) {
	b := NewSequencingBuffer()
	u := clip(0.1)
	b.Insert(seqChunk(1, 0.1))
	b.Insert(u)
	b.Insert(seqChunk(5, 0.1))
	b.Insert(seqChunk(3, 0.1))

	var seqs []uint64
	var sawUnsequenced bool
	for _, c := range drain(b) {
		if c.Sequenced {
			seqs = append(seqs, c.Sequence)
		} else {
			sawUnsequenced = true
		}
	}
	assert.Equal(t, []uint64{1, 3, 5}, seqs)
	assert.True(t, sawUnsequenced)
}

func TestBufferEqualSequencesKeepArrivalOrder(t *testing.T) {
	b := NewSequencingBuffer()
	a, c := seqChunk(4, 0.1), seqChunk(4, 0.1)
	b.Insert(a)
	b.Insert(c)

	got := drain(b)
	assert.Same(t, a, got[0])
	assert.Same(t, c, got[1])
}

func TestBufferEmptyAndClear(t *testing.T) {
	b := NewSequencingBuffer()

	_, ok := b.PopFront()
	assert.False(t, ok)
	_, ok = b.Peek()
	assert.False(t, ok)

	b.Insert(seqChunk(0, 0.1))
	b.Insert(nil)
	assert.Equal(t, 1, b.Len())

	head, ok := b.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(0), head.Sequence)
	assert.Equal(t, 1, b.Len())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	_, ok = b.PopFront()
	assert.False(t, ok)
}
