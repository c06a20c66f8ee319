// Package favorites holds the user's favorite pages. The in-memory
// collection is the working copy; every mutation writes the full collection
// back to the persisted store.
package favorites

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wiki-companion/kv"
	"wiki-companion/notify"
)

// Manager owns the favorites collection.
type Manager struct {
	mu      sync.RWMutex
	records []Record

	writeMu sync.Mutex
	value   *kv.Value[[]Record]

	now    func() time.Time
	log    *zap.Logger
	events *notify.Dispatcher[Change]
	cancel func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager loads the collection from store once. An absent or malformed
// payload starts an empty collection. Writes from other contexts replace the
// working copy as they are reported.
func NewManager(store *kv.Store, opts ...Option) *Manager {
	m := &Manager{
		value: kv.NewValue(store, Key, []Record{}),
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = notify.NewDispatcher[Change](notify.DefaultQueueSize, m.log)

	m.records = dedupe(m.value.Read())
	m.log.Debug("favorites loaded", zap.Int("count", len(m.records)))

	m.cancel = m.value.Subscribe(func(records []Record, _ bool) {
		m.sync(records)
	})
	return m
}

// OnChange registers fn for every successful mutation. Delivery is
// asynchronous and best-effort.
func (m *Manager) OnChange(fn func(Change)) {
	m.events.Listen(fn)
}

// Close detaches from the store and stops notification delivery.
func (m *Manager) Close() {
	m.cancel()
	m.events.Close()
}

// Flush waits until pending notifications were delivered.
func (m *Manager) Flush() {
	m.events.Flush()
}

// Add stamps r with the current time and appends it. A record whose id is
// already present, or that has no id, leaves the collection unchanged; the
// result reports whether anything was added.
func (m *Manager) Add(ctx context.Context, r Record) bool {
	if r.ID == "" {
		m.log.Debug("ignoring favorite without id")
		return false
	}

	m.mu.Lock()
	if indexOf(m.records, r.ID) >= 0 {
		m.mu.Unlock()
		return false
	}
	r.CreatedAt = m.now().UnixMilli()
	m.records = append(m.records, r)
	snapshot := copyRecords(m.records)
	m.mu.Unlock()

	m.persist()
	m.publish(Change{Kind: Added, Record: &r, Records: snapshot, Origin: notify.Origin(ctx)})
	return true
}

// Remove deletes the record with id, if any, and persists the collection.
// It reports whether a record was removed.
func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	i := indexOf(m.records, id)
	var removed Record
	if i >= 0 {
		removed = m.records[i]
		m.records = append(m.records[:i:i], m.records[i+1:]...)
	}
	snapshot := copyRecords(m.records)
	m.mu.Unlock()

	m.persist()
	if i < 0 {
		return false
	}
	m.publish(Change{Kind: Removed, Record: &removed, Records: snapshot, Origin: notify.Origin(ctx)})
	return true
}

// Contains reports whether id is a favorite.
func (m *Manager) Contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return indexOf(m.records, id) >= 0
}

// Get returns the record with id.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := indexOf(m.records, id); i >= 0 {
		return m.records[i], true
	}
	return Record{}, false
}

// Len returns the number of favorites.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// List returns a sorted copy of the collection, optionally restricted to one
// category. Unknown sort values fall back to SortRecent.
func (m *Manager) List(by Sort, category string) []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if category == "" || strings.EqualFold(r.Category, category) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	switch by {
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
			if a != b {
				return a < b
			}
			return out[i].ID < out[j].ID
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].CreatedAt != out[j].CreatedAt {
				return out[i].CreatedAt > out[j].CreatedAt
			}
			return out[i].ID < out[j].ID
		})
	}
	return out
}

// sync adopts a collection written by another context. Last write wins.
func (m *Manager) sync(records []Record) {
	records = dedupe(records)

	m.mu.Lock()
	m.records = records
	snapshot := copyRecords(records)
	m.mu.Unlock()

	m.log.Debug("favorites synced from storage", zap.Int("count", len(snapshot)))
	m.publish(Change{Kind: Synced, Records: snapshot})
}

// persist writes the current collection. The medium may call back into
// other managers synchronously, so it runs outside m.mu; writeMu keeps
// writes ordered and each one carries the latest state.
func (m *Manager) persist() {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	snapshot := copyRecords(m.records)
	m.mu.RUnlock()
	m.value.Write(snapshot)
}

func (m *Manager) publish(c Change) {
	if !m.events.Publish(c) {
		m.log.Debug("favorites notification dropped", zap.String("kind", string(c.Kind)))
	}
}

func indexOf(records []Record, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the first record per id.
func dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func copyRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
