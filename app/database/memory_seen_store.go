package database

import (
	"context"
	"sync"
)

var _ SeenStore = (*MemorySeenStore)(nil)

// MemorySeenStore keeps seen ids in process memory. Nothing survives a restart.
type MemorySeenStore struct {
	mu          sync.Mutex
	collections map[string][]string
}

func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{collections: make(map[string][]string)}
}

func (s *MemorySeenStore) Exists(ctx context.Context, id, collection string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seen := range s.collections[collection] {
		if seen == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemorySeenStore) Insert(ctx context.Context, id, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[collection] = append(s.collections[collection], id)
	return nil
}

func (s *MemorySeenStore) Prune(ctx context.Context, collection string, maxSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.collections[collection])
	if count <= maxSize {
		return 0, nil
	}

	delete(s.collections, collection)
	return count, nil
}

func (s *MemorySeenStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection]), nil
}

func (s *MemorySeenStore) Close() error {
	return nil
}
