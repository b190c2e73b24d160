package storage

import (
	"context"
	"sync"

	"Jaffre/internal/game/table"
)

// MemoryStore 进程内存储，单机或测试用
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, t *table.Table) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[t.ID] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*table.Table, error) {
	s.mu.RLock()
	data, ok := s.snaps[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return table.Unmarshal(data)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}
