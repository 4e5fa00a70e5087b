package app

import "time"

// RefreshedEvent is published after a refresh swapped in a new state and
// every provider booted.
type RefreshedEvent struct {
	Context    *Context
	Generation uint64
	At         time.Time
}

// StartedEvent is published by Start, once the application begins serving.
type StartedEvent struct {
	Context *Context
	At      time.Time
}

// ClosedEvent is published by Close before the context releases its state.
type ClosedEvent struct {
	Context *Context
	At      time.Time
}
