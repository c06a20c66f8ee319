// Package kv is the persisted-value layer shared by every stateful component.
//
// A Medium is the raw string key space (browser-like local storage: a JSON
// file, an SQLite table or an in-process map). Store and Value add typed
// JSON (de)serialisation on top of it with the recovery rules the state
// components rely on: unreadable values read as the caller's default and
// writes to an unavailable medium are dropped.
package kv

import "errors"

// ErrUnavailable is returned by a Medium that has no persistent backing in
// the current execution context. Store treats it as a silent no-op.
var ErrUnavailable = errors.New("kv: storage medium unavailable")

// Change describes a write to a key made by another execution context.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// Medium is a string key-value store shared by all contexts of one origin.
//
// Watch callbacks fire only for writes performed through a different handle
// of the same medium; a handle never observes its own writes. Concurrent
// writers are not coordinated: the last write to a key wins.
type Medium interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Watch(fn func(Change)) (cancel func())
}

// Unavailable is a Medium with no backing storage. Reads always miss and
// writes fail with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Get(string) (string, bool, error) { return "", false, nil }
func (Unavailable) Set(string, string) error         { return ErrUnavailable }
func (Unavailable) Delete(string) error               { return ErrUnavailable }
func (Unavailable) Watch(func(Change)) func()         { return func() {} }
