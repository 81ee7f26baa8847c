package repository

import (
	"context"
	"fmt"
	"sync"

	"skyfire-equipment/internal/domain"
)

// MemoryConfigStore 数据库未启用时使用的内存存储
type MemoryConfigStore struct {
	mu       sync.RWMutex
	records  map[string]map[string]any
	versions map[string]int64
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{
		records:  map[string]map[string]any{},
		versions: map[string]int64{},
	}
}

var _ ConfigStore = (*MemoryConfigStore)(nil)

func (s *MemoryConfigStore) Read(_ context.Context, projectID string) (map[string]any, int64, error) {
	if projectID == "" {
		return nil, 0, fmt.Errorf("project_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.records[projectID]))
	for k, v := range s.records[projectID] {
		out[k] = v
	}
	return out, s.versions[projectID], nil
}

func (s *MemoryConfigStore) Write(_ context.Context, projectID string, partial map[string]any) (int64, error) {
	if projectID == "" {
		return 0, fmt.Errorf("project_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[projectID]
	if !ok {
		rec = map[string]any{}
		s.records[projectID] = rec
	}
	for k, v := range partial {
		if domain.IsEmpty(v) {
			delete(rec, k)
			continue
		}
		rec[k] = v
	}
	s.versions[projectID]++
	return s.versions[projectID], nil
}
