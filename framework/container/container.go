package container

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/km-arc/go-appcontext/framework/errors"
	"github.com/km-arc/go-appcontext/framework/validation"
)

// ── Builder ───────────────────────────────────────────────────────────────────

// Builder accumulates definitions for one registry level. It is what a
// definition loader (a service provider) writes into; Build freezes the batch
// into an immutable Registry.
//
// Builder is not safe for concurrent use.
type Builder struct {
	defs     []Definition
	index    map[string]int
	aliases  map[string]string
	primary  map[string]bool
	problems []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		index:   make(map[string]int),
		aliases: make(map[string]string),
		primary: make(map[string]bool),
	}
}

// ── Registration ──────────────────────────────────────────────────────────────

// Add appends a raw definition. Later validation reports duplicates and
// malformed entries; Add itself never fails.
func (b *Builder) Add(def Definition) *Builder {
	if def.Scope == "" {
		def.Scope = ScopeSingleton
	}
	if def.Type == nil && def.Instance != nil {
		def.Type = reflect.TypeOf(def.Instance)
	}
	if _, dup := b.index[def.Name]; dup {
		b.problems = append(b.problems, fmt.Errorf("%w: %q defined twice at this level", errors.ErrInvalidDefinition, def.Name))
		return b
	}
	b.index[def.Name] = len(b.defs)
	b.defs = append(b.defs, def)
	for _, a := range def.Aliases {
		b.Alias(def.Name, a)
	}
	return b
}

// Instance registers a pre-built value as a singleton.
//
//	b.Instance("clock", time.Now)
func (b *Builder) Instance(name string, instance any) *Builder {
	return b.Add(Definition{Name: name, Instance: instance})
}

// Singleton registers a lazily built, cached component of type t.
//
//	b.Singleton("mailer", reflect.TypeFor[*Mailer](), func(l container.Lookup) (any, error) {
//	    cfg, err := container.Get[*config.Config](l, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewMailer(cfg), nil
//	})
func (b *Builder) Singleton(name string, t reflect.Type, f Factory) *Builder {
	return b.Add(Definition{Name: name, Type: t, Factory: f, Scope: ScopeSingleton})
}

// Prototype registers a component of type t built anew on every lookup.
func (b *Builder) Prototype(name string, t reflect.Type, f Factory) *Builder {
	return b.Add(Definition{Name: name, Type: t, Factory: f, Scope: ScopePrototype})
}

// Alias registers an alternative name for an existing definition.
//
//	b.Alias("messageSource", "messages")
func (b *Builder) Alias(name, alias string) *Builder {
	if name == alias {
		b.problems = append(b.problems, fmt.Errorf("%w: %q is aliased to itself", errors.ErrInvalidDefinition, name))
		return b
	}
	if prev, ok := b.aliases[alias]; ok && prev != name {
		b.problems = append(b.problems, fmt.Errorf("%w: alias %q already points to %q", errors.ErrInvalidDefinition, alias, prev))
		return b
	}
	b.aliases[alias] = name
	return b
}

// Primary marks a definition as the winner when a type lookup matches several
// local candidates.
func (b *Builder) Primary(name string) *Builder {
	b.primary[name] = true
	return b
}

// Has reports whether name (or an alias of it) is already defined.
func (b *Builder) Has(name string) bool {
	if _, ok := b.index[name]; ok {
		return true
	}
	_, ok := b.aliases[name]
	return ok
}

// Definitions returns a copy of the accumulated definitions in order.
func (b *Builder) Definitions() []Definition { return slices.Clone(b.defs) }

// ── Generic registration ──────────────────────────────────────────────────────

// Provide registers a typed singleton factory; the definition's type is T.
//
//	container.Provide(b, "repo", func(l container.Lookup) (*UserRepo, error) {
//	    db, err := container.GetByType[*sql.DB](l)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &UserRepo{DB: db}, nil
//	})
func Provide[T any](b *Builder, name string, f func(l Lookup) (T, error)) *Builder {
	return b.Singleton(name, reflect.TypeFor[T](), func(l Lookup) (any, error) { return f(l) })
}

// ProvidePrototype is Provide with ScopePrototype.
func ProvidePrototype[T any](b *Builder, name string, f func(l Lookup) (T, error)) *Builder {
	return b.Prototype(name, reflect.TypeFor[T](), func(l Lookup) (any, error) { return f(l) })
}

// ProvideValue registers v under name with the declared type T, which may be
// an interface v implements.
func ProvideValue[T any](b *Builder, name string, v T) *Builder {
	return b.Add(Definition{Name: name, Type: reflect.TypeFor[T](), Instance: v})
}

// ── Build ─────────────────────────────────────────────────────────────────────

var definitionRules = validation.Rules{
	"name":  `required|max:255|regex:^[A-Za-z_][A-Za-z0-9_.#$-]*$`,
	"scope": "required|in:singleton,prototype",
}

// Validate checks every definition and returns all problems joined.
func (b *Builder) Validate() error {
	errs := slices.Clone(b.problems)
	for _, d := range b.defs {
		v := validation.Make(map[string]string{"name": d.Name, "scope": string(d.Scope)}, definitionRules)
		if bag := v.Validate(); bag != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", errors.ErrInvalidDefinition, d.Name, bag))
			continue
		}
		switch {
		case d.Factory == nil && d.Instance == nil:
			errs = append(errs, fmt.Errorf("%w: %s has neither instance nor factory", errors.ErrInvalidDefinition, d.Name))
		case d.Factory != nil && d.Instance != nil:
			errs = append(errs, fmt.Errorf("%w: %s has both instance and factory", errors.ErrInvalidDefinition, d.Name))
		case d.Factory != nil && d.Type == nil:
			errs = append(errs, fmt.Errorf("%w: %s: factory definitions need a type", errors.ErrInvalidDefinition, d.Name))
		case d.Instance != nil && d.Scope == ScopePrototype:
			errs = append(errs, fmt.Errorf("%w: %s: instances are always singletons", errors.ErrInvalidDefinition, d.Name))
		case d.Instance != nil && !reflect.TypeOf(d.Instance).AssignableTo(d.Type):
			errs = append(errs, fmt.Errorf("%w: %s: %T is not a %s", errors.ErrInvalidDefinition, d.Name, d.Instance, d.Type))
		}
	}
	for alias, target := range b.aliases {
		if _, ok := b.index[target]; !ok {
			errs = append(errs, fmt.Errorf("%w: alias %q targets unknown %q", errors.ErrInvalidDefinition, alias, target))
		}
		if _, clash := b.index[alias]; clash {
			errs = append(errs, fmt.Errorf("%w: alias %q shadows a definition", errors.ErrInvalidDefinition, alias))
		}
	}
	for name := range b.primary {
		if _, ok := b.index[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: primary %q is not defined", errors.ErrInvalidDefinition, name))
		}
	}
	return errors.Join(errs...)
}

// Build validates the batch and freezes it into a Registry.
func (b *Builder) Build(opts ...Option) (*Registry, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	r := newRegistry(opts...)
	for _, d := range b.defs {
		if b.primary[d.Name] {
			d.Primary = true
		}
		e := &entry{def: d}
		if d.Instance != nil {
			e.value = d.Instance
			e.ready.Store(true)
		}
		r.entries[d.Name] = e
		r.order = append(r.order, d.Name)
	}
	for alias, target := range b.aliases {
		r.aliases[alias] = target
	}
	return r, nil
}

// describe renders candidate names for error messages.
func describe(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}
