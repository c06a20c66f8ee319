// Package session tracks the browser tabs that are attached for live
// updates and fans change events out to them.
package session

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNameTaken = errors.New("session name already in use")
var ErrNotFound = errors.New("session not found")

// Info is a point-in-time view of a Session.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Connected  bool      `json:"connected"`
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	backlog  int
	seq      atomic.Uint64
	log      *zap.Logger
}

// NewManager returns a Manager whose sessions keep up to backlog events for
// replay. A non-positive backlog uses the default.
func NewManager(backlog int, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{sessions: make(map[string]*Session), backlog: backlog, log: log}
}

// Create registers a tab. Names are optional labels; a non-empty name must
// be unique.
func (m *Manager) Create(name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name != "" {
		for _, s := range m.sessions {
			if s.Name == name {
				return nil, ErrNameTaken
			}
		}
	}

	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Name:       name,
		CreatedAt:  now,
		LastActive: now,
		backlog:    newBacklogBuf(m.backlog),
		done:       make(chan struct{}),
	}
	m.sessions[s.ID] = s
	m.log.Debug("session created", zap.String("id", s.ID), zap.String("name", name))
	return s, nil
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	list := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Kill closes the session and forgets it. An attached client sees Done.
func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.close()
	delete(m.sessions, id)
	m.log.Debug("session closed", zap.String("id", id))
	return nil
}

// Broadcast delivers an event to every session except the one with id
// except (the tab that caused the change). It returns the number of
// sessions the event was delivered to.
func (m *Manager) Broadcast(typ, key string, data any, except string) int {
	raw, err := json.Marshal(data)
	if err != nil {
		m.log.Error("encoding broadcast payload", zap.String("type", typ), zap.Error(err))
		return 0
	}
	e := Event{Seq: m.seq.Add(1), Type: typ, Key: key, Data: raw}

	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		if id != except {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		s.Deliver(e)
	}
	return len(targets)
}

// Sweep closes sessions that have had no client attached for longer than
// idle and returns how many were removed.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		since, ok := s.idleSince()
		if !ok || since.After(cutoff) {
			continue
		}
		s.close()
		delete(m.sessions, id)
		removed++
	}
	if removed > 0 {
		m.log.Debug("idle sessions swept", zap.Int("removed", removed))
	}
	return removed
}

// Info returns a consistent snapshot of the session.
func (s *Session) Info() Info {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return Info{
		ID:         s.ID,
		Name:       s.Name,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive,
		Connected:  s.Connected,
	}
}
