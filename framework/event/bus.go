package event

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

type registration struct {
	listener Listener
	filter   reflect.Type
}

func (r registration) accepts(e Event) bool {
	if r.filter == nil {
		return true
	}
	t := reflect.TypeOf(e)
	return t != nil && t.AssignableTo(r.filter)
}

// Observer is told the outcome of each local delivery round.
type Observer func(e Event, delivered int, failures int)

// Option configures a Bus.
type Option func(*Bus)

// WithParent sets the publisher every event is forwarded to after local
// delivery.
func WithParent(p Publisher) Option {
	return func(b *Bus) { b.parent = p }
}

// WithObserver installs a delivery observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(b *Bus) { b.observer = o }
}

// Bus is one level of synchronous publish/subscribe.
//
// The listener list is copy-on-write behind an atomic pointer: Publish reads a
// snapshot without locking, so listeners may publish again or (de)register
// while being called, and the running delivery is not affected.
type Bus struct {
	mu        sync.Mutex // serialises writers
	listeners atomic.Pointer[[]registration]
	parent    Publisher
	observer  Observer
}

// NewBus creates a bus with no listeners.
func NewBus(opts ...Option) *Bus {
	b := &Bus{}
	b.listeners.Store(&[]registration{})
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddListener registers l for events assignable to filter (nil means every
// event). Registering a listener that is already present is a no-op and keeps
// its original filter and position; it reports whether l was added.
//
// Identity is Go equality on the listener value. Listeners whose dynamic type
// is not comparable cannot be recognised again and are always added.
func (b *Bus) AddListener(l Listener, filter reflect.Type) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := *b.listeners.Load()
	if identifiable(l) {
		for _, r := range cur {
			if identifiable(r.listener) && r.listener == l {
				return false
			}
		}
	}
	next := append(slices.Clone(cur), registration{listener: l, filter: filter})
	b.listeners.Store(&next)
	return true
}

// RemoveListener unregisters l and reports whether it was present.
func (b *Bus) RemoveListener(l Listener) bool {
	if !identifiable(l) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := *b.listeners.Load()
	next := slices.DeleteFunc(slices.Clone(cur), func(r registration) bool {
		return identifiable(r.listener) && r.listener == l
	})
	if len(next) == len(cur) {
		return false
	}
	b.listeners.Store(&next)
	return true
}

// RemoveAll drops every local listener.
func (b *Bus) RemoveAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners.Store(&[]registration{})
}

// Len returns the number of local listeners.
func (b *Bus) Len() int { return len(*b.listeners.Load()) }

// Publish delivers e to the matching local listeners in registration order,
// then forwards it to the parent regardless of local matches. The returned
// error is nil, a *ListenerError covering local and ancestor failures, or the
// parent's own non-listener error joined with local failures.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	snapshot := *b.listeners.Load()

	var failures []Failure
	delivered := 0
	for _, r := range snapshot {
		if !r.accepts(e) {
			continue
		}
		delivered++
		if err := deliver(ctx, r.listener, e); err != nil {
			failures = append(failures, Failure{Listener: r.listener, Err: err})
		}
	}
	if b.observer != nil {
		b.observer(e, delivered, len(failures))
	}

	var parentErr error
	if b.parent != nil {
		if err := b.parent.Publish(ctx, e); err != nil {
			var le *ListenerError
			if errors.As(err, &le) {
				failures = append(failures, le.Failures...)
			} else {
				parentErr = err
			}
		}
	}

	var local error
	if len(failures) > 0 {
		local = &ListenerError{Event: e, Failures: failures}
	}
	if parentErr != nil {
		return errors.Join(local, parentErr)
	}
	return local
}

func deliver(ctx context.Context, l Listener, e Event) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return l.OnEvent(ctx, e)
}

// identifiable reports whether l can be compared with ==. The dynamic value
// is checked, since a comparable struct type may hold a slice in an
// interface field.
func identifiable(l Listener) bool {
	return l != nil && reflect.ValueOf(l).Comparable()
}
