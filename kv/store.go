package kv

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// Store binds a Medium to a logger. It is the only writer back to the
// medium for the state components built on it.
type Store struct {
	medium Medium
	log    *zap.Logger
}

// New wraps medium. A nil medium behaves as Unavailable.
func New(medium Medium, log *zap.Logger) *Store {
	if medium == nil {
		medium = Unavailable{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{medium: medium, log: log}
}

// Medium returns the underlying medium.
func (s *Store) Medium() Medium { return s.medium }

// Value is a typed, JSON-encoded view of one key.
type Value[T any] struct {
	store *Store
	key   string
	def   T
}

// NewValue returns a handle for key whose reads fall back to def.
func NewValue[T any](s *Store, key string, def T) *Value[T] {
	return &Value[T]{store: s, key: key, def: def}
}

// Key returns the storage key.
func (v *Value[T]) Key() string { return v.key }

// Read returns the stored value, or the default when it is absent or cannot
// be decoded.
func (v *Value[T]) Read() T {
	val, _ := v.Lookup()
	return val
}

// Lookup is Read that also reports whether a decodable value was stored.
func (v *Value[T]) Lookup() (T, bool) {
	raw, ok, err := v.store.medium.Get(v.key)
	if err != nil {
		v.store.log.Warn("reading stored value", zap.String("key", v.key), zap.Error(err))
		return v.def, false
	}
	if !ok {
		return v.def, false
	}
	return v.decode(raw)
}

// Write stores val. Failures are logged, never returned: an unavailable
// medium makes the write a no-op.
func (v *Value[T]) Write(val T) {
	data, err := json.Marshal(val)
	if err != nil {
		v.store.log.Error("encoding value", zap.String("key", v.key), zap.Error(err))
		return
	}
	v.report(v.store.medium.Set(v.key, string(data)))
}

// Clear removes the stored value.
func (v *Value[T]) Clear() {
	v.report(v.store.medium.Delete(v.key))
}

// Subscribe calls fn whenever another context changes the key. ok is false
// when the key was removed or the new payload could not be decoded, in which
// case val is the default.
func (v *Value[T]) Subscribe(fn func(val T, ok bool)) (cancel func()) {
	return v.store.medium.Watch(func(c Change) {
		if c.Key != v.key {
			return
		}
		if c.Deleted {
			fn(v.def, false)
			return
		}
		fn(v.decode(c.Value))
	})
}

func (v *Value[T]) decode(raw string) (T, bool) {
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		v.store.log.Warn("discarding undecodable stored value", zap.String("key", v.key), zap.Error(err))
		return v.def, false
	}
	return out, true
}

func (v *Value[T]) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrUnavailable):
		v.store.log.Debug("storage unavailable, write dropped", zap.String("key", v.key))
	default:
		v.store.log.Warn("writing stored value", zap.String("key", v.key), zap.Error(err))
	}
}
