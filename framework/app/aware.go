package app

import (
	"context"

	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/config"
	"github.com/km-arc/go-appcontext/framework/event"
	"github.com/km-arc/go-appcontext/framework/resource"
)

// MessageResolver is the message capability handed to MessageSourceAware
// components.
type MessageResolver interface {
	Message(key string, tag language.Tag, args ...any) (string, error)
	MessageOr(key, def string, tag language.Tag, args ...any) (string, error)
}

// ResourceLoader is the resource capability handed to ResourceResolverAware
// components.
type ResourceLoader interface {
	Resources(ctx context.Context, location string) ([]resource.Handle, error)
}

// NameAware components receive the name they were registered under.
type NameAware interface{ SetComponentName(name string) }

// EnvironmentAware components receive the context's Environment.
type EnvironmentAware interface{ SetEnvironment(env *config.Environment) }

// ResourceResolverAware components receive the resource capability.
type ResourceResolverAware interface{ SetResourceLoader(l ResourceLoader) }

// EventPublisherAware components receive the event publisher.
type EventPublisherAware interface{ SetEventPublisher(p event.Publisher) }

// MessageSourceAware components receive the message capability.
type MessageSourceAware interface{ SetMessageResolver(m MessageResolver) }

// ContextAware components receive the owning Context.
type ContextAware interface{ SetContext(c *Context) }

// Initializer runs after every Set* hook above.
type Initializer interface{ AfterPropertiesSet() error }

// awareInjector hands context references to freshly built components. The
// checks run in a fixed order, synchronously, before the component is cached.
type awareInjector struct {
	c *Context
}

func (a awareInjector) PostProcess(name string, v any) (any, error) {
	if x, ok := v.(NameAware); ok {
		x.SetComponentName(name)
	}
	if x, ok := v.(EnvironmentAware); ok {
		x.SetEnvironment(a.c.env)
	}
	if x, ok := v.(ResourceResolverAware); ok {
		x.SetResourceLoader(a.c)
	}
	if x, ok := v.(EventPublisherAware); ok {
		x.SetEventPublisher(a.c)
	}
	if x, ok := v.(MessageSourceAware); ok {
		x.SetMessageResolver(a.c)
	}
	if x, ok := v.(ContextAware); ok {
		x.SetContext(a.c)
	}
	if x, ok := v.(Initializer); ok {
		if err := x.AfterPropertiesSet(); err != nil {
			return nil, err
		}
	}
	return v, nil
}
