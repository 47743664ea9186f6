package attrs

import (
	"context"
	"sort"
	"sync"

	"github.com/livetemplate/tinkersheet"
)

// Memory is an in-process store.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string]tinkersheet.Attributes
	hub    hub
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[string]tinkersheet.Attributes)}
}

func (m *Memory) Read(_ context.Context, key string) (tinkersheet.Attributes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.blocks[key]
	if !ok {
		return tinkersheet.Attributes{}, notFound("memory", key)
	}
	return a.Clone(), nil
}

func (m *Memory) Write(ctx context.Context, key string, p tinkersheet.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	prev := m.blocks[key]
	next := merge(prev, p)
	m.blocks[key] = next
	m.mu.Unlock()

	m.hub.notify(Change{Key: key, Prev: prev, Next: next.Clone()})
	return nil
}

func (m *Memory) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blocks))
	for k := range m.blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Subscribe(key string, fn Listener) func() {
	return m.hub.subscribe(key, fn)
}

func (m *Memory) Close() error { return nil }
