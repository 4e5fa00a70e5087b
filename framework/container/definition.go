package container

import (
	"fmt"
	"reflect"
)

// Scope decides how often a definition's factory runs.
type Scope string

const (
	// ScopeSingleton builds once per registry, on first lookup.
	ScopeSingleton Scope = "singleton"
	// ScopePrototype builds a fresh instance on every lookup. It also stands in
	// for narrower scopes (per-request) that the owning collaborator manages.
	ScopePrototype Scope = "prototype"
)

// Factory builds a component. The Lookup it receives resolves the component's
// own dependencies: local definitions first, then the parent chain. It carries
// the creation chain, so a factory that resolves through it gets cycles
// reported with the full chain.
type Factory func(l Lookup) (any, error)

// Lookup is the read side of a registry level: what a factory resolves through
// and what a child registry delegates to when a name or type is absent locally.
type Lookup interface {
	Get(name string) (any, error)
	GetByType(t reflect.Type) (any, error)
}

// Lister is implemented by lookups that can enumerate one level.
type Lister interface {
	GetAll(t reflect.Type) (map[string]any, error)
}

// Definition describes one component registration.
//
// Exactly one of Instance or Factory is set. Type is the nominal type used by
// type lookups; it is taken from Instance when left nil, and is required for
// factories.
type Definition struct {
	Name     string
	Type     reflect.Type
	Instance any
	Factory  Factory
	Scope    Scope
	Primary  bool
	Aliases  []string
}

func (d Definition) String() string {
	t := "<nil>"
	if d.Type != nil {
		t = d.Type.String()
	}
	return fmt.Sprintf("%s (%s, %s)", d.Name, t, d.Scope)
}

// PostProcessor sees every instance a factory builds, in registration order,
// before the instance is cached or returned. It may wrap or replace it.
type PostProcessor interface {
	PostProcess(name string, instance any) (any, error)
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(name string, instance any) (any, error)

func (f PostProcessorFunc) PostProcess(name string, instance any) (any, error) {
	return f(name, instance)
}

// Disposable is implemented by components that release resources when their
// registry is destroyed. io.Closer is honoured the same way.
type Disposable interface {
	Destroy() error
}
