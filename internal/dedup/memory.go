package dedup

import (
	"context"
	"sync"

	"github.com/marksfx/content-agent/internal/models"
)

// MemoryStore is a process-local dedup store for the in-memory mode and
// for tests. The mutex gives the same at-most-once guarantee the redis
// SETNX does.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) IsNew(ctx context.Context, source models.SourceType, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(source, externalID)
	if _, ok := s.seen[k]; ok {
		return false, nil
	}
	s.seen[k] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
