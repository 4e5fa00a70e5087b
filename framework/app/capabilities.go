package app

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/config"
	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/errors"
	"github.com/km-arc/go-appcontext/framework/event"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/resource"
	"github.com/km-arc/go-appcontext/framework/validation"
)

// ── Components ────────────────────────────────────────────────────────────────

// Get returns the component named name from this level or an ancestor.
func (c *Context) Get(name string) (v any, err error) {
	err = c.withRegistry("Get", func(r *container.Registry) (err error) {
		v, err = r.Get(name)
		return err
	})
	return v, err
}

// GetByType returns the single component assignable to t, preferring this
// level; see container.Registry.GetByType for the ambiguity rules.
func (c *Context) GetByType(t reflect.Type) (v any, err error) {
	err = c.withRegistry("GetByType", func(r *container.Registry) (err error) {
		v, err = r.GetByType(t)
		return err
	})
	return v, err
}

// GetAll returns every component of this level assignable to t. Ancestors
// are never included.
func (c *Context) GetAll(t reflect.Type) (m map[string]any, err error) {
	err = c.withRegistry("GetAll", func(r *container.Registry) (err error) {
		m, err = r.GetAll(t)
		return err
	})
	return m, err
}

// Contains reports whether name is defined at this level.
func (c *Context) Contains(name string) (bool, error) {
	st, err := c.live("Contains")
	if err != nil {
		return false, err
	}
	return st.registry.Contains(name), nil
}

// Names lists the definitions of this level in registration order.
func (c *Context) Names() ([]string, error) {
	st, err := c.live("Names")
	if err != nil {
		return nil, err
	}
	return st.registry.Names(), nil
}

// withRegistry runs fn against the current registry. A refresh that lands
// mid-call destroys the registry fn holds; fn is then retried against the
// new one, so the caller sees one whole snapshot.
func (c *Context) withRegistry(op string, fn func(*container.Registry) error) error {
	for {
		st, err := c.live(op)
		if err != nil {
			return err
		}
		err = fn(st.registry)
		if err != nil && errors.Is(err, errors.ErrIllegalState) && c.state.Load() != st {
			continue
		}
		return err
	}
}

// ── Events ────────────────────────────────────────────────────────────────────

// Publish delivers e to this level's listeners and then to every ancestor.
// Listener failures come back aggregated in an *event.ListenerError.
func (c *Context) Publish(ctx context.Context, e event.Event) error {
	if _, err := c.live("Publish"); err != nil {
		return err
	}
	ctx, span := c.tracer.Start(ctx, "appctx.Publish", trace.WithAttributes(
		attribute.String("appctx.context", c.id),
		attribute.String("appctx.event", fmt.Sprintf("%T", e)),
	))
	defer span.End()

	err := c.bus.Publish(ctx, e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// AddListener registers l for events assignable to filter (all events when
// filter is nil). Listeners survive refreshes. It reports whether l was new.
func (c *Context) AddListener(l event.Listener, filter reflect.Type) (bool, error) {
	if c.Status() == StatusClosed {
		return false, c.stateError("AddListener", errors.ReasonClosed)
	}
	return c.bus.AddListener(l, filter), nil
}

// RemoveListener unregisters l.
func (c *Context) RemoveListener(l event.Listener) bool {
	return c.bus.RemoveListener(l)
}

// On registers a listener for events of type E and returns it for removal.
func On[E any](c *Context, fn func(ctx context.Context, e E) error) (event.Listener, error) {
	l, t := event.Typed(fn)
	if _, err := c.AddListener(l, t); err != nil {
		return nil, err
	}
	return l, nil
}

// ── Messages ──────────────────────────────────────────────────────────────────

// Message resolves key for tag through this level's catalog and then the
// ancestors'. Arguments are formatted for tag.
func (c *Context) Message(key string, tag language.Tag, args ...any) (string, error) {
	st, err := c.live("Message")
	if err != nil {
		return "", err
	}
	return st.messages.Resolve(key, tag, args...)
}

// MessageOr is Message with a default text used when no level has key.
func (c *Context) MessageOr(key, def string, tag language.Tag, args ...any) (string, error) {
	st, err := c.live("MessageOr")
	if err != nil {
		return "", err
	}
	return st.messages.ResolveDefault(key, def, tag, args...)
}

// MessageFor resolves a Resolvable: each key in turn, then its default.
func (c *Context) MessageFor(r message.Resolvable, tag language.Tag) (string, error) {
	st, err := c.live("MessageFor")
	if err != nil {
		return "", err
	}
	return st.messages.ResolveMessage(r, tag)
}

// Catalog returns this level's current message catalog.
func (c *Context) Catalog() (*message.Catalog, error) {
	st, err := c.live("Catalog")
	if err != nil {
		return nil, err
	}
	return st.messages.Catalog(), nil
}

// Translator adapts the message capability to validation messages for tag.
// Keys are "validation.<rule>"; the English template is the default.
func (c *Context) Translator(tag language.Tag) validation.Translator {
	return func(key, fallback string, args ...any) string {
		text, err := c.MessageOr(key, fallback, tag, args...)
		if err != nil {
			return fallback
		}
		return text
	}
}

// ── Resources ─────────────────────────────────────────────────────────────────

// Resources resolves location against this level's spaces, then the
// ancestors' when nothing matched locally.
func (c *Context) Resources(ctx context.Context, location string) ([]resource.Handle, error) {
	if _, err := c.live("Resources"); err != nil {
		return nil, err
	}
	return c.resources.Resolve(ctx, location)
}

// ResourceSchemes lists the schemes registered at this level.
func (c *Context) ResourceSchemes() []string { return c.resources.Schemes() }

// ── Environment ───────────────────────────────────────────────────────────────

// Environment returns the property and profile view of this level.
func (c *Context) Environment() (*config.Environment, error) {
	if _, err := c.live("Environment"); err != nil {
		return nil, err
	}
	return c.env, nil
}

// ── Parent adapters ───────────────────────────────────────────────────────────

// messageParent lets a child's message source delegate to the parent's
// current catalog.
type messageParent struct{ c *Context }

func (p messageParent) Resolve(key string, tag language.Tag, args ...any) (string, error) {
	return p.c.Message(key, tag, args...)
}

// resourceParent lets a child's resolver delegate to the parent context.
type resourceParent struct{ c *Context }

func (p resourceParent) Resolve(ctx context.Context, location string) ([]resource.Handle, error) {
	return p.c.Resources(ctx, location)
}

var (
	_ container.Lookup         = (*Context)(nil)
	_ container.Lister         = (*Context)(nil)
	_ event.Publisher          = (*Context)(nil)
	_ MessageResolver          = (*Context)(nil)
	_ ResourceLoader           = (*Context)(nil)
	_ message.Resolver         = messageParent{}
	_ resource.PatternResolver = resourceParent{}
)
