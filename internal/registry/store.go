package registry

import "sync"

// Store holds the live model catalogue. The only mutation is a whole
// snapshot replace; readers always observe a list from a single refresh
// generation. The guard is never held across network calls.
type Store struct {
	mu       sync.RWMutex
	snapshot []ModelDescriptor
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a consistent copy of the current descriptor list.
// Callers own the returned slice.
func (s *Store) Snapshot() []ModelDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ModelDescriptor, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Replace swaps in a new snapshot, deduplicating by ID. The last entry
// with a given ID wins, so dynamic descriptors appended after static ones
// overwrite rather than duplicate.
func (s *Store) Replace(descriptors []ModelDescriptor) {
	deduped := make([]ModelDescriptor, 0, len(descriptors))
	index := make(map[string]int, len(descriptors))

	for _, d := range descriptors {
		if i, seen := index[d.ID]; seen {
			deduped[i] = d
			continue
		}
		index[d.ID] = len(deduped)
		deduped = append(deduped, d)
	}

	s.mu.Lock()
	s.snapshot = deduped
	s.mu.Unlock()
}

// Len returns the current snapshot size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot)
}
