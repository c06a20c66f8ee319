// Package theme tracks the light/dark presentation preference.
//
// The preference is resolved once per process: a previously stored choice
// wins, then the platform hint, then Light. Every transition, including the
// initial resolution, is persisted and handed to the Applier.
package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"wiki-companion/kv"
	"wiki-companion/notify"
)

// Key is the storage key holding the serialized preference.
const Key = "theme"

// Preference is the active presentation mode.
type Preference string

const (
	Light Preference = "light"
	Dark  Preference = "dark"
)

// Default is used when neither a stored preference nor a hint exists.
const Default = Light

var ErrInvalid = errors.New("theme: invalid preference")

// Parse validates s as a Preference.
func Parse(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case Light, Dark:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalid, s)
}

// Valid reports whether p is Light or Dark.
func (p Preference) Valid() bool {
	return p == Light || p == Dark
}

// Opposite returns the other preference.
func (p Preference) Opposite() Preference {
	if p == Dark {
		return Light
	}
	return Dark
}

// ParseHint reads a platform colour-scheme hint such as the value of the
// Sec-CH-Prefers-Color-Scheme client hint (`"dark"`, quoted or not).
func ParseHint(s string) (Preference, bool) {
	p, err := Parse(strings.Trim(strings.TrimSpace(s), `"`))
	return p, err == nil
}

// Applier receives the resolved preference after every transition.
type Applier func(Preference)

// Change is delivered to listeners after every transition.
type Change struct {
	From   Preference `json:"from,omitempty"`
	To     Preference `json:"theme"`
	Synced bool       `json:"synced,omitempty"`
	Origin string     `json:"-"`
}

// Source says where the active preference came from.
type Source string

const (
	SourceStored  Source = "stored"
	SourceHint    Source = "hint"
	SourceDefault Source = "default"
	SourceUser    Source = "user"
	SourceSynced  Source = "synced"
)

// Manager holds the active preference.
type Manager struct {
	mu          sync.Mutex
	current     Preference
	source      Source
	initialised bool

	writeMu sync.Mutex
	value   *kv.Value[Preference]

	hint   string
	apply  Applier
	log    *zap.Logger
	events *notify.Dispatcher[Change]
	cancel func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithHint sets the platform hint used when Init gets none.
func WithHint(hint string) Option {
	return func(m *Manager) { m.hint = hint }
}

// WithApplier sets the presentation flag callback.
func WithApplier(fn Applier) Option {
	return func(m *Manager) { m.apply = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager binds a Manager to store. Resolution is deferred to the first
// Init, Current, Toggle or Set so a per-client hint can take part in it.
func NewManager(store *kv.Store, opts ...Option) *Manager {
	m := &Manager{
		value: kv.NewValue(store, Key, Preference("")),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = notify.NewDispatcher[Change](notify.DefaultQueueSize, m.log)
	m.cancel = m.value.Subscribe(m.sync)
	return m
}

// OnChange registers fn for every transition.
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

// Init resolves the initial preference if that has not happened yet and
// returns the active one. hint overrides the configured platform hint.
func (m *Manager) Init(ctx context.Context, hint string) Preference {
	m.mu.Lock()
	if m.initialised {
		p := m.current
		m.mu.Unlock()
		return p
	}

	source := SourceDefault
	p := Default
	if stored, ok := m.value.Lookup(); ok && stored.Valid() {
		p, source = stored, SourceStored
	} else if h, ok := ParseHint(hint); ok {
		p, source = h, SourceHint
	} else if h, ok := ParseHint(m.hint); ok {
		p, source = h, SourceHint
	}
	m.current = p
	m.source = source
	m.initialised = true
	m.mu.Unlock()

	m.log.Debug("theme resolved", zap.String("theme", string(p)), zap.String("source", string(source)))
	m.commit(ctx, Change{To: p})
	return p
}

// Current returns the active preference, resolving it first if needed.
func (m *Manager) Current() Preference {
	return m.Init(context.Background(), "")
}

// Source reports where the active preference came from. It is empty until
// the preference has been resolved.
func (m *Manager) Source() Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Toggle flips the preference and returns the new one.
func (m *Manager) Toggle(ctx context.Context) Preference {
	m.Init(ctx, "")

	m.mu.Lock()
	from := m.current
	m.current = from.Opposite()
	m.source = SourceUser
	to := m.current
	m.mu.Unlock()

	m.commit(ctx, Change{From: from, To: to})
	return to
}

// Set makes p the active preference.
func (m *Manager) Set(ctx context.Context, p Preference) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalid, p)
	}
	m.Init(ctx, "")

	m.mu.Lock()
	from := m.current
	m.current = p
	m.source = SourceUser
	m.mu.Unlock()

	m.commit(ctx, Change{From: from, To: p})
	return nil
}

// commit persists, applies and announces a transition. The write happens
// outside m.mu because the medium may call into other managers; writeMu
// keeps writes ordered and each one carries the latest preference.
func (m *Manager) commit(ctx context.Context, c Change) {
	m.writeMu.Lock()
	m.mu.Lock()
	latest := m.current
	m.mu.Unlock()
	m.value.Write(latest)
	m.applyFlag(latest)
	m.writeMu.Unlock()

	c.Origin = notify.Origin(ctx)
	m.events.Publish(c)
}

// sync adopts a preference written by another context. A removed or invalid
// value is ignored: the active preference stays until the next write.
func (m *Manager) sync(p Preference, ok bool) {
	if !ok || !p.Valid() {
		m.log.Debug("ignoring external theme change", zap.String("theme", string(p)), zap.Bool("ok", ok))
		return
	}

	m.mu.Lock()
	from := m.current
	m.current = p
	m.source = SourceSynced
	m.initialised = true
	m.mu.Unlock()

	if from == p {
		return
	}
	m.applyFlag(p)
	m.events.Publish(Change{From: from, To: p, Synced: true})
}

func (m *Manager) applyFlag(p Preference) {
	if m.apply == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("theme applier panicked", zap.Any("panic", r))
		}
	}()
	m.apply(p)
}
