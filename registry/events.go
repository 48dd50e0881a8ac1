package registry

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a lifecycle event.
type EventKind string

const (
	EventRegistered EventKind = "registered"
	EventLoading    EventKind = "loading"
	EventLoaded     EventKind = "loaded"
	EventError      EventKind = "error"
	EventUnloaded   EventKind = "unloaded"
)

// Event is pushed to handlers synchronously after each status transition.
// Record is a snapshot taken at transition time; Err is set for EventError.
type Event struct {
	ID     string    `json:"id"`
	Kind   EventKind `json:"kind"`
	Name   string    `json:"name"`
	Record Snapshot  `json:"record"`
	Err    error     `json:"-"`
	Time   time.Time `json:"time"`
}

// Handler receives lifecycle events. Handlers run synchronously on the
// loading goroutine and must not block; they may call back into the registry.
type Handler func(Event)

// Notify registers a lifecycle event handler. Handlers are invoked in
// registration order.
func (r *Registry) Notify(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// emit pushes one event to all handlers. Called outside the registry lock so
// handlers can inspect the registry.
func (r *Registry) emit(kind EventKind, snap Snapshot, err error) {
	r.mu.Lock()
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	if len(handlers) == 0 {
		return
	}

	ev := Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Name:   snap.Name,
		Record: snap,
		Err:    err,
		Time:   time.Now(),
	}
	for _, h := range handlers {
		h(ev)
	}
}
