package session

import (
	"encoding/json"
	"sync"
	"time"
)

const defaultBacklog = 64

// Event is one change pushed to a browser tab.
type Event struct {
	Seq  uint64          `json:"seq"`
	Type string          `json:"type"`
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Session is one open browser tab.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Connected  bool      `json:"connected"`

	backlog  *backlogBuf
	outChan  chan Event
	kickChan chan struct{}
	outMu    sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

// backlogBuf keeps the most recent events for replay on reconnect.
type backlogBuf struct {
	mu     sync.Mutex
	events []Event
	max    int
}

func newBacklogBuf(max int) *backlogBuf {
	if max <= 0 {
		max = defaultBacklog
	}
	return &backlogBuf{max: max}
}

func (b *backlogBuf) Write(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	if len(b.events) > b.max {
		excess := len(b.events) - b.max
		b.events = append([]Event(nil), b.events[excess:]...)
	}
}

// Since returns a copy of the buffered events with Seq greater than seq.
func (b *backlogBuf) Since(seq uint64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// SetClient registers a channel to receive live events. If a previous
// client is connected it is kicked: its kick channel is closed so the
// websocket handler can detect the displacement and close that connection.
// Returns a kick channel that will be closed if this client is itself later
// displaced.
func (s *Session) SetClient(ch chan Event) <-chan struct{} {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.kickChan != nil {
		close(s.kickChan)
	}
	kick := make(chan struct{})
	s.kickChan = kick
	s.outChan = ch
	s.Connected = true
	s.LastActive = time.Now()
	return kick
}

// ClearClient is called when a connection ends. It only updates session
// state if ch is still the current owner (guards against a displaced
// connection clearing a newer one). It always closes ch so the pump
// goroutine exits.
func (s *Session) ClearClient(ch chan Event) {
	s.outMu.Lock()
	if s.outChan == ch {
		s.outChan = nil
		s.Connected = false
		s.kickChan = nil
		s.LastActive = time.Now()
	}
	s.outMu.Unlock()
	close(ch)
}

// IsConnected reports whether a client is attached.
func (s *Session) IsConnected() bool {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.Connected
}

// idleSince returns when the session was last attached, or zero while a
// client is connected.
func (s *Session) idleSince() (time.Time, bool) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.Connected {
		return time.Time{}, false
	}
	return s.LastActive, true
}

// Deliver records e in the backlog and forwards it to the connected client.
// A slow client drops live events; it can catch up from the backlog.
func (s *Session) Deliver(e Event) {
	s.backlog.Write(e)

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outChan == nil {
		return
	}
	select {
	case s.outChan <- e:
	default:
	}
}

// Backlog returns the buffered events newer than seq.
func (s *Session) Backlog(seq uint64) []Event {
	return s.backlog.Since(seq)
}

// Done returns a channel that is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.doneOnce.Do(func() { close(s.done) })
}
