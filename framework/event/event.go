// Package event implements the synchronous event bus of a context level.
//
// Publish delivers to a snapshot of the local listeners in registration
// order, then always hands the same event to the parent publisher, so an
// ancestor observes every event raised below it after the descendants have
// seen it. Listener failures (returned errors and panics) never stop delivery;
// they are collected into a *ListenerError returned once every listener, local
// and ancestor, has been attempted.
package event

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// Event is any value published on a bus. Listeners filter on its dynamic type
// or on an interface it implements.
type Event any

// Listener receives events.
type Listener interface {
	OnEvent(ctx context.Context, e Event) error
}

// Publisher is the publishing side of a bus; a context hands one to
// components that ask for it and a child bus delegates to its parent's.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// funcListener gives a plain function a stable identity so that registering
// the same ListenerFunc value twice is idempotent.
type funcListener struct {
	fn func(ctx context.Context, e Event) error
}

func (f *funcListener) OnEvent(ctx context.Context, e Event) error { return f.fn(ctx, e) }

// ListenerFunc wraps fn as a Listener. Each call returns a new identity.
func ListenerFunc(fn func(ctx context.Context, e Event) error) Listener {
	return &funcListener{fn: fn}
}

// Typed wraps a function that only wants events assignable to E, and returns
// the filter that goes with it.
func Typed[E any](fn func(ctx context.Context, e E) error) (Listener, reflect.Type) {
	return ListenerFunc(func(ctx context.Context, e Event) error {
		return fn(ctx, e.(E))
	}), reflect.TypeFor[E]()
}

// ── Failures ──────────────────────────────────────────────────────────────────

// Failure is one listener's error during a publish.
type Failure struct {
	Listener Listener
	Err      error
}

func (f Failure) Error() string { return fmt.Sprintf("%T: %v", f.Listener, f.Err) }
func (f Failure) Unwrap() error { return f.Err }

// ListenerError aggregates every failure of one publish, local and inherited.
type ListenerError struct {
	Event    Event
	Failures []Failure
}

func (e *ListenerError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d listener(s) failed for %T: %s", len(e.Failures), e.Event, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrListenerFailure) hold.
func (e *ListenerError) Is(target error) bool { return target == errors.ErrListenerFailure }

// Unwrap exposes each failure so errors.Is/As can reach listener errors.
func (e *ListenerError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// PanicError carries a recovered listener panic.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("listener panicked: %v", p.Value) }
