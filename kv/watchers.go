package kv

import (
	"sync"

	"github.com/google/uuid"
)

// watcherSet holds the Watch callbacks of a single medium handle.
type watcherSet struct {
	mu  sync.RWMutex
	fns map[string]func(Change)
}

func (w *watcherSet) add(fn func(Change)) func() {
	id := uuid.New().String()
	w.mu.Lock()
	if w.fns == nil {
		w.fns = make(map[string]func(Change))
	}
	w.fns[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watcherSet) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}
	w.mu.RLock()
	fns := make([]func(Change), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
