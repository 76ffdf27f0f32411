package knowledgebase

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/autoact/pkg/types"
	"github.com/google/uuid"
)

// MemoryStore keeps items in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items []types.ContextItem
}

// NewMemoryStore creates a store seeded with items, kept in the given order.
func NewMemoryStore(items ...types.ContextItem) *MemoryStore {
	return &MemoryStore{items: append([]types.ContextItem(nil), items...)}
}

// List returns a copy of all items.
func (s *MemoryStore) List(ctx context.Context) ([]types.ContextItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ContextItem{}, s.items...), nil
}

// Get returns the item with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (types.ContextItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return types.ContextItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends a new item.
func (s *MemoryStore) Add(ctx context.Context, values types.ContextFormValues) (types.ContextItem, error) {
	values, err := normalize(values)
	if err != nil {
		return types.ContextItem{}, err
	}

	item := types.ContextItem{
		ID:          uuid.New().String(),
		Title:       values.Title,
		Description: values.Description,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return item, nil
}

// Update replaces an existing item's fields in place.
func (s *MemoryStore) Update(ctx context.Context, item types.ContextItem) (types.ContextItem, error) {
	values, err := normalize(item.Values())
	if err != nil {
		return types.ContextItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Title = values.Title
			s.items[i].Description = values.Description
			return s.items[i], nil
		}
	}
	return types.ContextItem{}, fmt.Errorf("%w: %s", ErrNotFound, item.ID)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
