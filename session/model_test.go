package session

import (
	"testing"
)

func newTestSession() *Session {
	return &Session{
		backlog: newBacklogBuf(0),
		done:    make(chan struct{}),
	}
}

func TestSetClientConnected(t *testing.T) {
	s := newTestSession()
	ch := make(chan Event, 1)
	kick := s.SetClient(ch)
	if !s.IsConnected() {
		t.Fatal("expected Connected to be true after SetClient")
	}
	if kick == nil {
		t.Fatal("expected non-nil kick channel")
	}
}

func TestSetClientKicksPrior(t *testing.T) {
	s := newTestSession()
	ch1 := make(chan Event, 1)
	kick1 := s.SetClient(ch1)

	ch2 := make(chan Event, 1)
	_ = s.SetClient(ch2)

	select {
	case <-kick1:
		// ok: first client's kick channel was closed
	default:
		t.Fatal("first client's kick channel was not closed on displacement")
	}
}

func TestClearClientOwnershipGuard(t *testing.T) {
	s := newTestSession()
	ch1 := make(chan Event, 1)
	_ = s.SetClient(ch1)

	ch2 := make(chan Event, 1)
	_ = s.SetClient(ch2)

	// ClearClient with the displaced channel should NOT clear Connected.
	s.ClearClient(ch1)
	if !s.IsConnected() {
		t.Fatal("ClearClient with displaced channel should not clear Connected")
	}

	// ClearClient with the current channel should clear Connected.
	s.ClearClient(ch2)
	if s.IsConnected() {
		t.Fatal("ClearClient with current channel should clear Connected")
	}
}

func TestDeliverWithoutClientBuffers(t *testing.T) {
	s := newTestSession()
	s.Deliver(Event{Seq: 1, Type: "theme"})
	if got := s.Backlog(0); len(got) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(got))
	}
}

func TestDeliverDoesNotBlockOnFullClient(t *testing.T) {
	s := newTestSession()
	ch := make(chan Event) // unbuffered, nobody reading
	s.SetClient(ch)
	s.Deliver(Event{Seq: 1})
	s.Deliver(Event{Seq: 2})
	if got := s.Backlog(0); len(got) != 2 {
		t.Fatalf("expected both events in backlog, got %d", len(got))
	}
}
