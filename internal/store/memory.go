package store

import (
	"context"
	"sync"
)

// Memory keeps every document in process. It is the default backend for
// development and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
	hub  *hub
}

func NewMemory() *Memory {
	m := &Memory{docs: map[string]map[string]any{}}
	m.hub = newHub(m.ReadOnce)
	return m
}

func (m *Memory) Subscribe(ctx context.Context, path string, onValue ValueFunc, onError ErrorFunc) (func(), error) {
	return m.hub.subscribe(ctx, path, onValue, onError)
}

func (m *Memory) ReadOnce(_ context.Context, path string) (any, bool, error) {
	key, rest, err := docKey(path)
	if err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := lookup(m.docs[key], rest)
	if !ok {
		return nil, false, nil
	}
	return cloneValue(v), true, nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	return m.MultiUpdate(ctx, map[string]any{path: value})
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	return m.MultiUpdate(ctx, map[string]any{path: nil})
}

func (m *Memory) MultiUpdate(_ context.Context, updates map[string]any) error {
	groups, keys, err := groupUpdates(updates)
	if err != nil {
		metricWriteErrors.Add(1)
		return err
	}
	m.mu.Lock()
	for _, key := range keys {
		doc := applyUpdates(cloneDoc(m.docs[key]), groups[key])
		if doc == nil {
			delete(m.docs, key)
		} else {
			m.docs[key] = doc
		}
	}
	m.mu.Unlock()
	metricWritesTotal.Add(1)
	for _, key := range keys {
		m.hub.notify(key)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, path string) ([]string, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(segs) == 1 {
		keys := make([]string, 0, len(m.docs))
		for k := range m.docs {
			keys = append(keys, k)
		}
		return childKeys(keys, segs[0]), nil
	}
	key := segs[0] + "/" + segs[1]
	v, ok := lookup(m.docs[key], segs[2:])
	if !ok {
		return []string{}, nil
	}
	return objectKeys(v), nil
}

func (m *Memory) Close() error {
	m.hub.close()
	return nil
}

func cloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return cloneValue(doc).(map[string]any)
}
