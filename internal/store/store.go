package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Find when no item has the given id.
var ErrNotFound = errors.New("store: not found")

// Repository is the narrow page-store contract the planner depends on. Items
// are addressed by an opaque string id.
type Repository[T any] interface {
	Find(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, item T) error
	FindAll(ctx context.Context, filter func(T) bool) ([]T, error)
	Delete(ctx context.Context, id string) error
}

// Memory is an in-process Repository. It backs the CLI and tests; the real
// page store lives outside this module.
type Memory[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	idOf  func(T) string
}

// NewMemory builds a Memory store; idOf extracts the id of an item.
func NewMemory[T any](idOf func(T) string) *Memory[T] {
	return &Memory[T]{
		items: make(map[string]T),
		idOf:  idOf,
	}
}

func (m *Memory[T]) Find(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return zero, ErrNotFound
	}
	return item, nil
}

func (m *Memory[T]) Save(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := m.idOf(item)
	if id == "" {
		return errors.New("store: item has empty id")
	}
	m.mu.Lock()
	m.items[id] = item
	m.mu.Unlock()
	return nil
}

// FindAll returns matching items ordered by id. A nil filter matches everything.
func (m *Memory[T]) FindAll(ctx context.Context, filter func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		item := m.items[id]
		if filter == nil || filter(item) {
			out = append(out, item)
		}
	}
	m.mu.RUnlock()
	return out, nil
}

// Delete removes the item with id. Deleting a missing id returns ErrNotFound.
func (m *Memory[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}
