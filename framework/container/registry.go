package container

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// Observer is told the outcome of every top-level lookup; op is "name",
// "type" or "list".
type Observer func(op string, err error)

// Option configures a Registry at Build time.
type Option func(*Registry)

// WithParent sets the lookup consulted when a name or type is absent locally.
func WithParent(parent Lookup) Option {
	return func(r *Registry) { r.parent = parent }
}

// WithPostProcessor appends a post-processor; they run in the order given.
func WithPostProcessor(pp PostProcessor) Option {
	return func(r *Registry) { r.post = append(r.post, pp) }
}

// WithObserver installs a lookup observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// WithLabel names the registry in error messages.
func WithLabel(label string) Option {
	return func(r *Registry) { r.label = label }
}

type entry struct {
	def   Definition
	value any
	ready atomic.Bool

	// guarded by Registry.stateMu; set while a singleton is being built
	owner *creation
	done  chan struct{}
}

// Registry is one immutable level of component definitions with lazily built
// singletons. Lookups are safe for concurrent use. Registration happens only
// through a Builder; a new batch means a new Registry.
type Registry struct {
	label    string
	parent   Lookup
	entries  map[string]*entry
	aliases  map[string]string
	order    []string
	post     []PostProcessor
	observer Observer

	// stateMu guards in-flight markers and the created list. It is never
	// held while a factory or post-processor runs.
	stateMu   sync.Mutex
	created   []*entry
	destroyed atomic.Bool
}

func newRegistry(opts ...Option) *Registry {
	r := &Registry{
		label:   "registry",
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// creation is one chain of nested builds started by a top-level lookup.
// waiting is the in-flight entry the chain is blocked on, if any.
type creation struct {
	stack   []string
	waiting *entry
}

// view is the Lookup a factory receives.
type view struct {
	r *Registry
	c *creation
}

func (v *view) Get(name string) (any, error)                  { return v.r.get(name, v.c) }
func (v *view) GetByType(t reflect.Type) (any, error)         { return v.r.getByType(t, v.c) }
func (v *view) GetAll(t reflect.Type) (map[string]any, error) { return v.r.getAll(t, v.c) }

// ── Lookup ────────────────────────────────────────────────────────────────────

// Get returns the component registered under name (or an alias) at this
// level, else the parent's, else ErrNotFound.
func (r *Registry) Get(name string) (any, error) {
	v, err := r.get(name, nil)
	r.observe("name", err)
	return v, err
}

// GetByType returns the single local component assignable to t. Several
// matches resolve to the one marked primary, otherwise *AmbiguousError. With
// no local match the parent is asked.
func (r *Registry) GetByType(t reflect.Type) (any, error) {
	v, err := r.getByType(t, nil)
	r.observe("type", err)
	return v, err
}

// GetAll instantiates and returns every local component assignable to t,
// keyed by name. Ancestors are never included.
func (r *Registry) GetAll(t reflect.Type) (map[string]any, error) {
	v, err := r.getAll(t, nil)
	r.observe("list", err)
	return v, err
}

// Contains reports whether name or an alias is defined at this level.
func (r *Registry) Contains(name string) bool {
	_, ok := r.local(name)
	return ok
}

// Names returns the local definition names in registration order.
func (r *Registry) Names() []string { return slices.Clone(r.order) }

// NamesForType returns the local names whose declared type is assignable to t,
// in registration order, without instantiating anything.
func (r *Registry) NamesForType(t reflect.Type) []string {
	var out []string
	for _, n := range r.order {
		if r.entries[n].def.Type.AssignableTo(t) {
			out = append(out, n)
		}
	}
	return out
}

// Definition returns the local definition registered under name.
func (r *Registry) Definition(name string) (Definition, bool) {
	e, ok := r.local(name)
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// Parent returns the delegation target, or nil for a root registry.
func (r *Registry) Parent() Lookup { return r.parent }

func (r *Registry) local(name string) (*entry, bool) {
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) get(name string, c *creation) (any, error) {
	if err := r.checkLive("Get"); err != nil {
		return nil, err
	}
	e, ok := r.local(name)
	if !ok {
		if r.parent != nil {
			return r.parent.Get(name)
		}
		return nil, fmt.Errorf("%s: %q: %w", r.label, name, errors.ErrNotFound)
	}
	return r.instantiate(e, c)
}

func (r *Registry) getByType(t reflect.Type, c *creation) (any, error) {
	if err := r.checkLive("GetByType"); err != nil {
		return nil, err
	}
	var candidates, primaries []*entry
	for _, n := range r.order {
		e := r.entries[n]
		if e.def.Type.AssignableTo(t) {
			candidates = append(candidates, e)
			if e.def.Primary {
				primaries = append(primaries, e)
			}
		}
	}
	switch {
	case len(candidates) == 1:
		return r.instantiate(candidates[0], c)
	case len(candidates) > 1 && len(primaries) == 1:
		return r.instantiate(primaries[0], c)
	case len(candidates) > 1:
		names := make([]string, len(candidates))
		for i, e := range candidates {
			names[i] = e.def.Name
		}
		sort.Strings(names)
		return nil, &AmbiguousError{Registry: r.label, Type: t, Candidates: names}
	}
	if r.parent != nil {
		return r.parent.GetByType(t)
	}
	return nil, fmt.Errorf("%s: no component of type %s: %w", r.label, t, errors.ErrNotFound)
}

func (r *Registry) getAll(t reflect.Type, c *creation) (map[string]any, error) {
	if err := r.checkLive("GetAll"); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, n := range r.NamesForType(t) {
		v, err := r.instantiate(r.entries[n], c)
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

// ── Instantiation ─────────────────────────────────────────────────────────────

func (r *Registry) instantiate(e *entry, c *creation) (any, error) {
	if c == nil {
		c = &creation{}
	}
	if e.def.Scope == ScopePrototype {
		return r.create(e, c)
	}
	for {
		if e.ready.Load() {
			return e.value, nil
		}
		r.stateMu.Lock()
		if e.ready.Load() {
			r.stateMu.Unlock()
			return e.value, nil
		}
		// Destroy may have run while this caller waited.
		if err := r.checkLive("create"); err != nil {
			r.stateMu.Unlock()
			return nil, err
		}
		if e.owner == nil {
			e.owner, e.done = c, make(chan struct{})
			r.stateMu.Unlock()
			return r.build(e, c)
		}
		if r.waitsOn(e.owner, c) {
			r.stateMu.Unlock()
			chain := append(slices.Clone(c.stack), e.def.Name)
			return nil, fmt.Errorf("%s: %s: %w", r.label, describe(chain), errors.ErrCurrentlyInCreation)
		}
		c.waiting = e
		done := e.done
		r.stateMu.Unlock()

		<-done

		r.stateMu.Lock()
		c.waiting = nil
		r.stateMu.Unlock()
		// A failed build leaves the entry free; the next pass retries it.
	}
}

// waitsOn reports whether the chain owner is c or is blocked, directly or
// through other chains, on an entry c is building. Blocking c on owner then
// would never return. Callers hold stateMu.
func (r *Registry) waitsOn(owner, c *creation) bool {
	for o := owner; o != nil; {
		if o == c {
			return true
		}
		if o.waiting == nil {
			return false
		}
		o = o.waiting.owner
	}
	return false
}

func (r *Registry) build(e *entry, c *creation) (v any, err error) {
	finished := false
	defer func() {
		r.stateMu.Lock()
		defer r.stateMu.Unlock()
		// Released on every path, a panicking factory included.
		e.owner = nil
		close(e.done)
		e.done = nil
		if !finished || err != nil {
			return
		}
		if r.destroyed.Load() {
			// Built after Destroy collected the created list; release it here.
			_ = dispose(v)
			v, err = nil, r.checkLive("create")
			return
		}
		e.value = v
		e.ready.Store(true)
		r.created = append(r.created, e)
	}()
	v, err = r.create(e, c)
	finished = true
	return v, err
}

func (r *Registry) create(e *entry, c *creation) (any, error) {
	name := e.def.Name
	if slices.Contains(c.stack, name) {
		chain := append(slices.Clone(c.stack), name)
		return nil, fmt.Errorf("%s: %s: %w", r.label, describe(chain), errors.ErrCurrentlyInCreation)
	}
	c.stack = append(c.stack, name)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()

	v, err := e.def.Factory(&view{r: r, c: c})
	if err != nil {
		return nil, errors.Wrap(err, name, "create", "")
	}
	if v == nil {
		return nil, fmt.Errorf("%s: factory for %q returned nil: %w", r.label, name, errors.ErrInvalidDefinition)
	}
	if !reflect.TypeOf(v).AssignableTo(e.def.Type) {
		return nil, fmt.Errorf("%s: %q built %T, declared %s: %w", r.label, name, v, e.def.Type, errors.ErrTypeMismatch)
	}
	for _, pp := range r.post {
		if v, err = pp.PostProcess(name, v); err != nil {
			return nil, errors.Wrap(err, name, "post-process", "")
		}
	}
	return v, nil
}

// ── Destruction ───────────────────────────────────────────────────────────────

// Destroy releases built singletons in reverse creation order and makes every
// later lookup fail with ErrIllegalState. Pre-registered instances are owned by
// whoever registered them and are left alone. Calling Destroy twice is a no-op.
func (r *Registry) Destroy() error {
	if !r.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	r.stateMu.Lock()
	created := r.created
	r.created = nil
	r.stateMu.Unlock()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		e := created[i]
		if err := dispose(e.value); err != nil {
			errs = append(errs, errors.Wrap(err, e.def.Name, "destroy", ""))
		}
	}
	return errors.Join(errs...)
}

func dispose(v any) error {
	switch v := v.(type) {
	case Disposable:
		return v.Destroy()
	case io.Closer:
		return v.Close()
	}
	return nil
}

func (r *Registry) checkLive(op string) error {
	if r.destroyed.Load() {
		return &errors.StateError{Context: r.label, State: "destroyed", Operation: op, Reason: errors.ReasonClosed}
	}
	return nil
}

func (r *Registry) observe(op string, err error) {
	if r.observer != nil {
		r.observer(op, err)
	}
}

// ── Errors ────────────────────────────────────────────────────────────────────

// AmbiguousError reports a type lookup with several local candidates and no
// single primary among them.
type AmbiguousError struct {
	Registry   string
	Type       reflect.Type
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s: %d components of type %s %s and none is primary",
		e.Registry, len(e.Candidates), e.Type, describe(e.Candidates))
}

// Is makes errors.Is(err, ErrAmbiguous) hold.
func (e *AmbiguousError) Is(target error) bool { return target == errors.ErrAmbiguous }
