package kv

import (
	"sync"

	"github.com/google/uuid"
)

// MemorySpace is an in-process key space shared by several Memory handles,
// the way one origin's local storage is shared by its open tabs.
type MemorySpace struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers map[string]memoryWatcher
}

type memoryWatcher struct {
	handle string
	fn     func(Change)
}

// NewMemorySpace returns an empty shared key space.
func NewMemorySpace() *MemorySpace {
	return &MemorySpace{
		data:     make(map[string]string),
		watchers: make(map[string]memoryWatcher),
	}
}

// Open returns a new handle onto the space. Writes through it notify the
// watchers of every other handle.
func (s *MemorySpace) Open() *Memory {
	return &Memory{space: s, id: uuid.New().String()}
}

// Memory is one context's handle onto a MemorySpace.
type Memory struct {
	space *MemorySpace
	id    string
}

// NewMemory returns a handle onto a fresh private space.
func NewMemory() *Memory {
	return NewMemorySpace().Open()
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.space.mu.RLock()
	defer m.space.mu.RUnlock()
	v, ok := m.space.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.space.mu.Lock()
	m.space.data[key] = value
	targets := m.space.othersLocked(m.id)
	m.space.mu.Unlock()

	for _, fn := range targets {
		fn(Change{Key: key, Value: value})
	}
	return nil
}

func (m *Memory) Delete(key string) error {
	m.space.mu.Lock()
	_, existed := m.space.data[key]
	delete(m.space.data, key)
	targets := m.space.othersLocked(m.id)
	m.space.mu.Unlock()

	if !existed {
		return nil
	}
	for _, fn := range targets {
		fn(Change{Key: key, Deleted: true})
	}
	return nil
}

func (m *Memory) Watch(fn func(Change)) func() {
	id := uuid.New().String()
	m.space.mu.Lock()
	m.space.watchers[id] = memoryWatcher{handle: m.id, fn: fn}
	m.space.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.space.mu.Lock()
			delete(m.space.watchers, id)
			m.space.mu.Unlock()
		})
	}
}

// othersLocked returns the callbacks registered by handles other than self.
// Caller must hold s.mu.
func (s *MemorySpace) othersLocked(self string) []func(Change) {
	var out []func(Change)
	for _, w := range s.watchers {
		if w.handle != self {
			out = append(out, w.fn)
		}
	}
	return out
}
