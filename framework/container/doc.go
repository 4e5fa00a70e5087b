// Package container provides the component registry of one context level.
//
// # Overview
//
// Definitions are collected in a Builder, validated, and frozen into an
// immutable Registry. The registry instantiates singletons lazily on first
// lookup and delegates absent names and types to its parent Lookup, which is
// normally the parent context. Listings (GetAll, Names, Contains) never look
// past their own level, so callers can tell "defined here" from "inherited".
//
// Because Go has no runtime constructor reflection, construction is explicit:
// each definition carries a pre-built Instance or a Factory.
//
// # Lifecycle
//
//  1. Collect: b := container.NewBuilder(); providers write definitions into b
//  2. Build:   reg, err := b.Build(container.WithParent(parentCtx))
//  3. Lookup:  concurrent Get / GetByType / GetAll
//  4. Destroy: reg.Destroy() closes built singletons in reverse order
//
// # Definitions
//
//	// Pre-built value
//	b.Instance("config", cfg)
//
//	// Singleton, built on first lookup
//	container.Provide(b, "mailer", func(l container.Lookup) (*Mailer, error) {
//	    cfg, err := container.Get[*config.Config](l, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return NewMailer(cfg), nil
//	})
//
//	// New instance per lookup
//	container.ProvidePrototype(b, "job", newJob)
//
//	// Alias and primary
//	b.Alias("mailer", "mail")
//	b.Primary("mailer")
//
// # Resolving
//
//	raw, err := reg.Get("mailer")
//	mailer, err := container.Get[*Mailer](reg, "mailer")
//	sender, err := container.GetByType[Sender](reg)   // ErrAmbiguous if two senders and no primary
//	all, err := container.GetAll[Sender](reg)         // local level only
//
// # Concurrency
//
// Each singleton is built once. Concurrent first lookups of the same name wait
// for that build; no registry-wide lock is held while a factory or
// post-processor runs, so an initializer may look up other components. Two
// chains waiting on each other's components fail with ErrCurrentlyInCreation
// rather than blocking. A component must not look itself up from its own
// initializer.
//
// # Errors
//
// ErrNotFound is an ordinary lookup outcome. *AmbiguousError (ErrAmbiguous)
// means the caller must ask by name or mark a primary. A factory that pulls a
// component already on its own creation chain fails with
// ErrCurrentlyInCreation. Every lookup on a destroyed registry fails with
// ErrIllegalState.
package container
