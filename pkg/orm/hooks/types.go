package hooks

import (
	"context"
)

// Phase identifies a lifecycle transition
type Phase int

const (
	// Creating runs before a record is inserted
	Creating Phase = iota
	// Created runs after a record was inserted
	Created
	// Updating runs before a record is updated
	Updating
	// Updated runs after a record was updated
	Updated
	// Deleting runs before a record is deleted
	Deleting
	// Deleted runs after a record was deleted
	Deleted
)

// String returns the string representation of a phase
func (p Phase) String() string {
	switch p {
	case Creating:
		return "creating"
	case Created:
		return "created"
	case Updating:
		return "updating"
	case Updated:
		return "updated"
	case Deleting:
		return "deleting"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// IsBefore reports whether the phase runs before the storage call
func (p Phase) IsBefore() bool {
	return p == Creating || p == Updating || p == Deleting
}

// Phases lists every phase in lifecycle order
func Phases() []Phase {
	return []Phase{Creating, Created, Updating, Updated, Deleting, Deleted}
}

// Event is passed to every listener of a dispatch. It embeds the caller's
// context so listeners can hand it straight to blocking calls.
type Event[T any] struct {
	context.Context
	Phase   Phase
	Subject T
	stopped bool
}

// NewEvent creates an event for a subject
func NewEvent[T any](ctx context.Context, phase Phase, subject T) *Event[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Event[T]{Context: ctx, Phase: phase, Subject: subject}
}

// StopPropagation halts the remaining listeners and vetoes the transition
func (e *Event[T]) StopPropagation() {
	e.stopped = true
}

// Stopped reports whether a listener halted propagation
func (e *Event[T]) Stopped() bool {
	return e.stopped
}

// Listener handles an event
type Listener[T any] func(e *Event[T])
