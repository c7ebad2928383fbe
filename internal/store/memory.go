package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/c5t/c5t/internal/types"
)

// Memory is an in-memory Store. Records are kept as encoded JSON so callers
// never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	entities map[types.Kind]map[string][]byte
	links    map[types.Relation]map[[2]string]struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entities: make(map[types.Kind]map[string][]byte),
		links:    make(map[types.Relation]map[[2]string]struct{}),
	}
}

// ListAll implements Store.
func (m *Memory) ListAll(ctx context.Context, kind types.Kind) ([]types.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entities[kind]))
	for id := range m.entities[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]types.Entity, 0, len(ids))
	for _, id := range ids {
		e, err := decode(kind, m.entities[kind][id])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, kind types.Kind, id string) (types.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.entities[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return decode(kind, data)
}

// Upsert implements Store.
func (m *Memory) Upsert(ctx context.Context, e types.Entity) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", e.EntityKind(), err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kind := e.EntityKind()
	if m.entities[kind] == nil {
		m.entities[kind] = make(map[string][]byte)
	}
	m.entities[kind][e.EntityID()] = data
	return nil
}

// ListLinks implements Store.
func (m *Memory) ListLinks(ctx context.Context, rel types.Relation) ([]types.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Link, 0, len(m.links[rel]))
	for pair := range m.links[rel] {
		out = append(out, types.Link{Relation: rel, A: pair[0], B: pair[1]})
	}
	sort.Slice(out, func(i, j int) bool {
		return types.CompareLinks(out[i], out[j]) < 0
	})
	return out, nil
}

// AddLink implements Store.
func (m *Memory) AddLink(ctx context.Context, l types.Link) (bool, error) {
	if err := l.Validate(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.links[l.Relation] == nil {
		m.links[l.Relation] = make(map[[2]string]struct{})
	}
	key := [2]string{l.A, l.B}
	if _, ok := m.links[l.Relation][key]; ok {
		return false, nil
	}
	m.links[l.Relation][key] = struct{}{}
	return true, nil
}

func decode(kind types.Kind, data []byte) (types.Entity, error) {
	e, err := types.NewEntity(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	e.Normalize()
	types.ClearDerived(e)
	return e, nil
}

// Count implements Counter.
func (m *Memory) Count(ctx context.Context, kind types.Kind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities[kind]), nil
}
