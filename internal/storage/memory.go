package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps documents in a map. Used for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(ctx context.Context, docPath string) (json.RawMessage, error) {
	if _, field, err := splitPath(docPath); err != nil {
		return nil, err
	} else if len(field) > 0 {
		return nil, ErrInvalidPath
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[docPath]
	if !ok {
		return nil, notFound(docPath)
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (m *MemoryStore) List(ctx context.Context, collectionPath string) (map[string]json.RawMessage, error) {
	if err := validCollection(collectionPath); err != nil {
		return nil, err
	}
	prefix := strings.Trim(collectionPath, "/") + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage)
	for k, v := range m.docs {
		if id, ok := strings.CutPrefix(k, prefix); ok {
			out[id] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, docPath string, value any) error {
	if _, field, err := splitPath(docPath); err != nil {
		return err
	} else if len(field) > 0 {
		return ErrInvalidPath
	}
	return m.Update(ctx, Patch{docPath: value})
}

func (m *MemoryStore) Update(ctx context.Context, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, err := p.resolve(func(docPath string) (json.RawMessage, bool, error) {
		raw, ok := m.docs[docPath]
		return raw, ok, nil
	})
	if err != nil {
		return err
	}
	for k, v := range docs {
		if v == nil {
			delete(m.docs, k)
			continue
		}
		m.docs[k] = v
	}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	return m.Update(ctx, Patch{path: nil})
}

func (m *MemoryStore) UserIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range m.docs {
		_, uid := collectionOf(k)
		seen[uid] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }
