// Package event provides generic state-change fan-out with disposable
// subscriptions.
package event

import "sync"

// Emitter delivers events to registered handlers in registration order.
// The zero value is ready to use.
type Emitter[E any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []handler[E]
}

type handler[E any] struct {
	id uint64
	fn func(E)
}

// Subscribe registers fn and returns a disposer that removes it.
// The disposer is safe to call more than once.
func (e *Emitter[E]) Subscribe(fn func(E)) (dispose func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handler[E]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[E]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every handler synchronously with a snapshot of the handler
// list, so handlers may subscribe or dispose during emission.
// Must not be called with a caller lock held that handlers might take.
func (e *Emitter[E]) Emit(ev E) {
	e.mu.RLock()
	handlers := make([]handler[E], len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		h.fn(ev)
	}
}

// Reset drops every handler.
func (e *Emitter[E]) Reset() {
	e.mu.Lock()
	e.handlers = nil
	e.mu.Unlock()
}

// Len reports the number of registered handlers.
func (e *Emitter[E]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}
