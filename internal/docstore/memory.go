package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is a map-backed store for dev mode and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]any)}
}

// Get loads the document at path.
func (m *Memory) Get(ctx context.Context, path string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.docs[path]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{Path: path, Fields: clone(fields)}, nil
}

// Set writes the full document at path.
func (m *Memory) Set(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = clone(fields)
	return nil
}

// Delete removes the document at path. Absent documents are a no-op.
func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	return nil
}

// DeleteBatch removes the given paths.
func (m *Memory) DeleteBatch(ctx context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.docs, p)
	}
	return nil
}

// List returns up to limit documents of a collection ordered by path.
func (m *Memory) List(ctx context.Context, collection, after string, limit int) ([]Doc, error) {
	return m.scan(collection, after, limit, nil)
}

// Query returns documents of a collection whose field equals value.
func (m *Memory) Query(ctx context.Context, collection, field, value, after string, limit int) ([]Doc, error) {
	return m.scan(collection, after, limit, func(fields map[string]any) bool {
		s, ok := fields[field].(string)
		return ok && s == value
	})
}

func (m *Memory) scan(collection, after string, limit int, match func(map[string]any) bool) ([]Doc, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		if PathCollection(p) != collection || p <= after {
			continue
		}
		if match != nil && !match(m.docs[p]) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > limit {
		paths = paths[:limit]
	}
	docs := make([]Doc, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, Doc{Path: p, Fields: clone(m.docs[p])})
	}
	m.mu.RUnlock()
	return docs, nil
}

// clone deep-copies fields through JSON so callers never share maps with the
// store. It also normalizes values the same way a real document store would
// (numbers come back as float64).
func clone(fields map[string]any) map[string]any {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(fmt.Sprintf("docstore: unencodable fields: %v", err))
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}
