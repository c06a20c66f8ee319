// Package notify delivers best-effort change notifications off the caller's
// path. Publishing never blocks and a failing listener never affects the
// publisher or the other listeners.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultQueueSize bounds the number of undelivered events per dispatcher.
const DefaultQueueSize = 64

// Dispatcher fans events out to listeners on a single goroutine, preserving
// publish order.
type Dispatcher[E any] struct {
	mu        sync.RWMutex
	listeners []func(E)
	log       *zap.Logger

	queueMu sync.RWMutex
	queue   chan item[E]
	closed  bool
	stopped chan struct{}
}

type item[E any] struct {
	event   E
	barrier chan struct{}
}

// NewDispatcher starts a dispatcher with room for size queued events.
func NewDispatcher[E any](size int, log *zap.Logger) *Dispatcher[E] {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher[E]{
		queue:   make(chan item[E], size),
		log:     log,
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

// Listen registers fn for every event published afterwards.
func (d *Dispatcher[E]) Listen(fn func(E)) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Publish queues e. It reports false when the event was dropped because the
// queue is full or the dispatcher is closed.
func (d *Dispatcher[E]) Publish(e E) bool {
	d.queueMu.RLock()
	defer d.queueMu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- item[E]{event: e}:
		return true
	default:
		d.log.Warn("notification queue full, event dropped")
		return false
	}
}

// Flush blocks until every event published before the call was delivered.
func (d *Dispatcher[E]) Flush() {
	d.queueMu.RLock()
	if d.closed {
		d.queueMu.RUnlock()
		<-d.stopped
		return
	}
	barrier := make(chan struct{})
	d.queue <- item[E]{barrier: barrier}
	d.queueMu.RUnlock()
	<-barrier
}

// Close delivers the queued events and stops the dispatcher.
func (d *Dispatcher[E]) Close() {
	d.queueMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.queueMu.Unlock()
	<-d.stopped
}

func (d *Dispatcher[E]) run() {
	defer close(d.stopped)
	for it := range d.queue {
		if it.barrier != nil {
			close(it.barrier)
			continue
		}

		d.mu.RLock()
		listeners := make([]func(E), len(d.listeners))
		copy(listeners, d.listeners)
		d.mu.RUnlock()

		for _, fn := range listeners {
			d.deliver(fn, it.event)
		}
	}
}

func (d *Dispatcher[E]) deliver(fn func(E), e E) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification listener panicked", zap.Any("panic", r))
		}
	}()
	fn(e)
}

type originKey struct{}

// WithOrigin tags ctx with the id of the context (browser tab) that caused
// a mutation, so listeners can skip echoing it back.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// Origin returns the id stored by WithOrigin, or "".
func Origin(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(originKey{}).(string)
	return s
}
