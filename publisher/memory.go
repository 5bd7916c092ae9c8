package publisher

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"ai_art_description/generator"
)

// MemoryStore keeps items in process. It is used for tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[int64]generator.ContentItem

	// FailKeys makes UpdateMeta fail for these meta keys.
	FailKeys map[string]bool
	writes   int
}

func NewMemoryStore(items ...generator.ContentItem) *MemoryStore {
	s := &MemoryStore{items: make(map[int64]generator.ContentItem)}
	for _, it := range items {
		s.Put(it)
	}
	return s
}

// Put stores a copy of item.
func (s *MemoryStore) Put(item generator.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Meta = maps.Clone(item.Meta)
	if item.Meta == nil {
		item.Meta = make(map[string]string)
	}
	s.items[item.ID] = item
}

// Get returns a copy of the stored item.
func (s *MemoryStore) Get(id int64) (generator.ContentItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	it.Meta = maps.Clone(it.Meta)
	return it, ok
}

// Writes counts successful updates.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) LoadItem(_ context.Context, id int64) (generator.ContentItem, error) {
	it, ok := s.Get(id)
	if !ok {
		return generator.ContentItem{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, nil
}

func (s *MemoryStore) UpdateExcerpt(_ context.Context, id int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	it.Excerpt = text
	s.items[id] = it
	s.writes++
	return nil
}

func (s *MemoryStore) UpdateMeta(_ context.Context, id int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailKeys[key] {
		return fmt.Errorf("meta %s rejected", key)
	}
	it, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	it.Meta[key] = value
	s.items[id] = it
	s.writes++
	return nil
}
