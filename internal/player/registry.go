// ABOUTME: Registry of chunks committed to the output device
// ABOUTME: Tracks live playback handles so they can all be stopped at once
package player

import (
	"github.com/lanlan-project/voicestage/pkg/audio"
	"github.com/lanlan-project/voicestage/pkg/audio/output"
)

// ScheduledPlayback is one chunk committed to the device
type ScheduledPlayback struct {
	ID    uint64
	Start float64
	Chunk *audio.Chunk
	voice output.Voice
}

// Registry holds every live ScheduledPlayback handle
type Registry struct {
	nextID  uint64
	entries map[uint64]*ScheduledPlayback
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]*ScheduledPlayback)}
}

// Reserve allocates the ID for the next handle
func (r *Registry) Reserve() uint64 {
	r.nextID++
	return r.nextID
}

// Add registers a live handle
func (r *Registry) Add(p *ScheduledPlayback) {
	r.entries[p.ID] = p
}

// Complete removes a handle whose playback finished. Unknown or already
// completed IDs return false, so each handle completes at most once.
func (r *Registry) Complete(id uint64) (*ScheduledPlayback, bool) {
	p, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	return p, true
}

// StopAll stops every live handle and empties the registry
func (r *Registry) StopAll() int {
	n := len(r.entries)
	for id, p := range r.entries {
		if p.voice != nil {
			p.voice.Stop()
		}
		delete(r.entries, id)
	}
	return n
}

// Len returns the number of live handles
func (r *Registry) Len() int {
	return len(r.entries)
}
