package app

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/resource"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider contributes definitions to every registry a context builds.
//
// Register runs once per refresh against a fresh Builder and must not look
// anything up. Boot runs after the new state is in place, so it may resolve
// any component.
//
//	type AppServiceProvider struct{ app.BaseProvider }
//
//	func (p *AppServiceProvider) Register(b *container.Builder) error {
//	    container.Provide(b, "clock", func(container.Lookup) (Clock, error) {
//	        return systemClock{}, nil
//	    })
//	    return nil
//	}
type ServiceProvider interface {
	Register(b *container.Builder) error
	Boot(c *Context) error
}

// MessageProvider is implemented by providers that contribute message
// bundles. It is called on every refresh, before the registry is built.
type MessageProvider interface {
	Messages(ctx context.Context, r resource.PatternResolver) ([]message.Bundle, error)
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with a no-op Boot.
//
//	type MyProvider struct{ app.BaseProvider }
//	func (p *MyProvider) Register(b *container.Builder) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Context) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry keeps the providers of one context in registration order.
type ProviderRegistry struct {
	mu        sync.Mutex
	providers []ServiceProvider
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry() *ProviderRegistry { return &ProviderRegistry{} }

// Register adds p unless the same provider value is already present. It
// reports whether p was added. New providers take effect on the next refresh.
func (r *ProviderRegistry) Register(p ServiceProvider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reflect.ValueOf(p).Comparable() && slices.Contains(r.providers, p) {
		return false
	}
	r.providers = append(r.providers, p)
	return true
}

// Providers returns a snapshot of the registered providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.providers)
}

// registerAll runs every provider's Register against b.
func registerAll(providers []ServiceProvider, b *container.Builder) error {
	for _, p := range providers {
		if err := p.Register(b); err != nil {
			return fmt.Errorf("provider %T: register: %w", p, err)
		}
	}
	return nil
}

// bootAll boots providers in order, stopping at the first failure.
func bootAll(providers []ServiceProvider, c *Context) error {
	for _, p := range providers {
		if err := p.Boot(c); err != nil {
			return fmt.Errorf("provider %T: boot: %w", p, err)
		}
	}
	return nil
}

// collectMessages gathers bundles from every MessageProvider.
func collectMessages(ctx context.Context, providers []ServiceProvider, r resource.PatternResolver) ([]message.Bundle, error) {
	var out []message.Bundle
	for _, p := range providers {
		mp, ok := p.(MessageProvider)
		if !ok {
			continue
		}
		bundles, err := mp.Messages(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("provider %T: messages: %w", p, err)
		}
		out = append(out, bundles...)
	}
	return out, nil
}
