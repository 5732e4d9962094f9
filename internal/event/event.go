// Package event implements named-handler notification channels such as a
// graph's error channel.
package event

import "sync"

// Handler receives one event.
type Handler[T any] func(T)

type binding[T any] struct {
	label string
	fn    Handler[T]
}

// Dispatcher keeps handlers in binding order. Binding an existing label
// replaces its handler without moving it. Broadcasts are serialized, so
// handlers never run concurrently with each other even when events are
// raised from many goroutines.
type Dispatcher[T any] struct {
	// OnPanic, if set, is called when a handler panics. The remaining
	// handlers still run.
	OnPanic func(label string, recovered any)

	mu       sync.RWMutex
	bindings []binding[T]

	dispatch sync.Mutex
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{}
}

// Bind registers fn under label.
func (d *Dispatcher[T]) Bind(label string, fn Handler[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.bindings {
		if d.bindings[i].label == label {
			d.bindings[i].fn = fn
			return
		}
	}
	d.bindings = append(d.bindings, binding[T]{label: label, fn: fn})
}

// Unbind removes the handler bound under label and reports whether there
// was one.
func (d *Dispatcher[T]) Unbind(label string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.bindings {
		if d.bindings[i].label == label {
			d.bindings = append(d.bindings[:i:i], d.bindings[i+1:]...)
			return true
		}
	}
	return false
}

// Labels returns the bound labels in invocation order.
func (d *Dispatcher[T]) Labels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(d.bindings))
	for i, b := range d.bindings {
		out[i] = b.label
	}
	return out
}

// Broadcast delivers v to every bound handler in binding order. Handlers
// bound while a broadcast is in flight see the next event, not this one.
func (d *Dispatcher[T]) Broadcast(v T) {
	d.mu.RLock()
	snapshot := make([]binding[T], len(d.bindings))
	copy(snapshot, d.bindings)
	d.mu.RUnlock()

	d.dispatch.Lock()
	defer d.dispatch.Unlock()

	for _, b := range snapshot {
		d.invoke(b, v)
	}
}

func (d *Dispatcher[T]) invoke(b binding[T], v T) {
	defer func() {
		if r := recover(); r != nil && d.OnPanic != nil {
			d.OnPanic(b.label, r)
		}
	}()
	b.fn(v)
}
