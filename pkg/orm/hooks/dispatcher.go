package hooks

import (
	"context"
	"sort"
	"sync"
)

type registration[T any] struct {
	fn       Listener[T]
	priority int
	seq      int
}

// Dispatcher manages the prioritized listeners of one model type
type Dispatcher[T any] struct {
	listeners map[Phase][]registration[T]
	seq       int
	mu        sync.RWMutex
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{
		listeners: make(map[Phase][]registration[T]),
	}
}

// On registers a listener. Higher priorities run first; equal priorities run
// in registration order.
func (d *Dispatcher[T]) On(phase Phase, priority int, fn Listener[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	regs := append(d.listeners[phase], registration[T]{fn: fn, priority: priority, seq: d.seq})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	d.listeners[phase] = regs
}

// Has returns true if there are any listeners registered for the given phase
func (d *Dispatcher[T]) Has(phase Phase) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[phase]) > 0
}

// Count returns the number of listeners for a phase
func (d *Dispatcher[T]) Count(phase Phase) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[phase])
}

// Dispatch runs the listeners of a phase in order. It returns false when a
// listener stopped propagation.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, phase Phase, subject T) bool {
	d.mu.RLock()
	regs := append([]registration[T](nil), d.listeners[phase]...)
	d.mu.RUnlock()

	if len(regs) == 0 {
		return true
	}

	event := NewEvent(ctx, phase, subject)
	for _, reg := range regs {
		reg.fn(event)
		if event.Stopped() {
			return false
		}
	}
	return true
}

// Clear removes every listener
func (d *Dispatcher[T]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[Phase][]registration[T])
}
