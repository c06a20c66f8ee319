package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wiki-companion/favorites"
	"wiki-companion/session"
	"wiki-companion/theme"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope for every frame in either direction.
type wsMessage struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq,omitempty"`
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type snapshot struct {
	Favorites []favorites.Record `json:"favorites"`
	Theme     theme.Preference   `json:"theme"`
}

func eventMessage(e session.Event) wsMessage {
	return wsMessage{Type: e.Type, Seq: e.Seq, Key: e.Key, Data: e.Data}
}

func (h *handler) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, ok := h.sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "since must be a sequence number", http.StatusBadRequest)
			return
		}
		since = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("session", id), zap.Error(err))
		return
	}
	defer conn.Close()

	// gorilla/websocket forbids concurrent writes.
	var writeMu sync.Mutex
	writeMsg := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	outChan := make(chan session.Event, 256)
	kick := s.SetClient(outChan)
	defer s.ClearClient(outChan)

	// Current state first, so a fresh tab renders without waiting for events.
	snap, err := json.Marshal(snapshot{
		Favorites: h.favorites.List(favorites.SortRecent, ""),
		Theme:     h.theme.Init(r.Context(), r.Header.Get(hintHeader)),
	})
	if err != nil {
		h.log.Error("encoding snapshot", zap.Error(err))
		return
	}
	if err := writeMsg(wsMessage{Type: "snapshot", Data: snap}); err != nil {
		return
	}

	// A reconnecting tab catches up on what it missed. Live events that
	// were also replayed are skipped by sequence number.
	last := since
	if since > 0 {
		for _, e := range s.Backlog(since) {
			if err := writeMsg(eventMessage(e)); err != nil {
				return
			}
			last = e.Seq
		}
	}

	// Exits when ClearClient closes outChan.
	go func() {
		for e := range outChan {
			if e.Seq <= last {
				continue
			}
			if err := writeMsg(eventMessage(e)); err != nil {
				return
			}
		}
	}()

	connDone := make(chan struct{})
	go func() {
		select {
		case <-s.Done():
			writeMsg(wsMessage{Type: "closed"}) //nolint:errcheck
			conn.Close()
		case <-kick:
			// Displaced by a newer connection for the same tab.
			conn.Close()
		case <-connDone:
		}
	}()
	defer close(connDone)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			if err := writeMsg(wsMessage{Type: "pong"}); err != nil {
				return
			}
		default:
			h.log.Debug("ignoring websocket message", zap.String("type", msg.Type))
		}
	}
}
