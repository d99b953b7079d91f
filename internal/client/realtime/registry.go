package realtime

import (
	"encoding/json"
	"sort"
	"sync"
)

// Handler receives the raw payload of one named event.
type Handler func(data json.RawMessage)

// Registry is the internal pub/sub that decouples components from the
// transport: server pushes are re-emitted here and anything in the app can
// subscribe. Listeners for one event run in registration order; no ordering
// is guaranteed across different events.
type Registry struct {
	mu        sync.Mutex
	listeners map[string]map[int]Handler
	nextID    int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string]map[int]Handler)}
}

// On registers fn for the named event and returns a function that removes
// the registration.
func (r *Registry) On(event string, fn Handler) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.listeners[event] == nil {
		r.listeners[event] = make(map[int]Handler)
	}
	r.listeners[event][id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners[event], id)
		r.mu.Unlock()
	}
}

// Emit delivers data to every listener of the named event, synchronously and
// in registration order.
func (r *Registry) Emit(event string, data json.RawMessage) {
	r.mu.Lock()
	ids := make([]int, 0, len(r.listeners[event]))
	for id := range r.listeners[event] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.listeners[event][id])
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}
