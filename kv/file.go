package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileMedium keeps the whole key space in one JSON document on disk.
// Writes replace the document atomically; Start watches the file so that
// writes made by other processes are reported to Watch callbacks.
type FileMedium struct {
	mu   sync.Mutex
	path string
	data map[string]string // last document this handle wrote or observed
	log  *zap.Logger

	watchers watcherSet

	runMu   sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// OpenFile loads the document at path. A missing file is an empty key space;
// a malformed document is logged and treated as empty as well.
func OpenFile(path string, log *zap.Logger) (*FileMedium, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f := &FileMedium{path: filepath.Clean(path), log: log}

	data, err := readDocument(f.path)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
			return nil, err
		}
		log.Warn("discarding malformed storage document", zap.String("path", f.path), zap.Error(err))
		data = map[string]string{}
	}
	f.data = data
	return f, nil
}

// Path returns the location of the backing document.
func (f *FileMedium) Path() string { return f.path }

func (f *FileMedium) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *FileMedium) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := copyDocument(f.data)
	next[key] = value
	if err := f.writeAtomic(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

func (f *FileMedium) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; !ok {
		return nil
	}
	next := copyDocument(f.data)
	delete(next, key)
	if err := f.writeAtomic(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

func (f *FileMedium) Watch(fn func(Change)) func() {
	return f.watchers.add(fn)
}

// Start begins watching the document's directory. It is non-blocking and
// safe to call more than once.
func (f *FileMedium) Start(ctx context.Context) error {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	if f.running {
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory rather than the file: atomic renames replace the
	// inode and would silently drop a file-level watch.
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	f.watcher = w
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.running = true
	go f.run(ctx)

	f.log.Debug("watching storage document", zap.String("path", f.path))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (f *FileMedium) Stop() {
	f.runMu.Lock()
	if !f.running {
		f.runMu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	done := f.doneCh
	w := f.watcher
	f.runMu.Unlock()

	<-done
	if err := w.Close(); err != nil {
		f.log.Warn("closing storage watcher", zap.Error(err))
	}
}

func (f *FileMedium) run(ctx context.Context) {
	defer close(f.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.reload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("storage watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the document and reports every key that differs from the
// last known state. The handle's own writes already updated f.data, so they
// produce no changes.
func (f *FileMedium) reload() {
	f.mu.Lock()
	next, err := readDocument(f.path)
	if err != nil {
		f.mu.Unlock()
		f.log.Debug("ignoring unreadable storage document", zap.String("path", f.path), zap.Error(err))
		return
	}
	changes := diffDocuments(f.data, next)
	f.data = next
	f.mu.Unlock()

	if len(changes) > 0 {
		f.log.Debug("external storage change", zap.Int("keys", len(changes)))
	}
	f.watchers.emit(changes)
}

// writeAtomic writes to a temp file then renames it over f.path.
// Caller must hold f.mu.
func (f *FileMedium) writeAtomic(doc map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func readDocument(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}

func copyDocument(doc map[string]string) map[string]string {
	out := make(map[string]string, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// diffDocuments lists the changes that turn prev into next, ordered by key.
func diffDocuments(prev, next map[string]string) []Change {
	var changes []Change
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			changes = append(changes, Change{Key: k, Value: v})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changes = append(changes, Change{Key: k, Deleted: true})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}
