package artifact

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// InMemoryStore keeps artifacts in process memory, matching the
// original product's Map-backed storage. Suitable for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *InMemoryStore) Store(_ context.Context, data []byte, ext string) (string, error) {
	name := newName(ext)
	blob := make([]byte, len(data))
	copy(blob, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = memoryEntry{data: blob, storedAt: time.Now()}
	return name, nil
}

func (s *InMemoryStore) Fetch(_ context.Context, name string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[name]
	if !ok {
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (s *InMemoryStore) Sweep(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for name, entry := range s.entries {
		if entry.storedAt.Before(cutoff) {
			delete(s.entries, name)
			evicted++
		}
	}
	return evicted, nil
}

func (s *InMemoryStore) Close() error { return nil }
