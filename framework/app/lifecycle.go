package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/errors"
	"github.com/km-arc/go-appcontext/framework/message"
)

// Refresh builds a new registry and message catalog and swaps them in. The
// first call activates the context; later calls need a reloadable context.
// On failure the previous state stays in place.
//
// Providers boot against the new state once it is swapped in. If a Boot
// fails the previous state is restored and the new registry destroyed, so a
// concurrent reader may briefly hold a component of the discarded
// generation.
//
// RefreshedEvent is published after the transition completes, so its
// listeners may call back into the context.
func (c *Context) Refresh(ctx context.Context) error {
	ev, err := c.refresh(ctx)
	if err != nil {
		return err
	}
	return c.Publish(ctx, ev)
}

func (c *Context) refresh(ctx context.Context) (_ RefreshedEvent, err error) {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	prev := c.Status()
	switch {
	case prev == StatusClosed, c.closing.Load():
		return RefreshedEvent{}, c.stateError("Refresh", errors.ReasonClosed)
	case prev == StatusActive && !c.reloadable:
		return RefreshedEvent{}, c.stateError("Refresh", errors.ReasonNotReloadable)
	}
	if c.parent != nil && !c.parent.Status().live() {
		return RefreshedEvent{}, fmt.Errorf("parent %s: %w", c.parent.id, c.parent.stateError("Refresh", c.parent.inactiveReason()))
	}

	ctx, span := c.tracer.Start(ctx, "appctx.Refresh")
	span.SetAttributes(attribute.String("appctx.context", c.id))
	start := c.now()
	defer func() {
		c.metrics.Refreshed(c.metricLabel, c.now().Sub(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	c.status.Store(int32(StatusRefreshing))
	providers := c.providers.Providers()
	next, err := c.build(ctx, providers)
	if err != nil {
		c.status.Store(int32(prev))
		c.refreshErr.Store(true)
		c.logger.Error("refresh failed", "err", err)
		return RefreshedEvent{}, err
	}

	old := c.state.Swap(next)
	if err := bootAll(providers, c); err != nil {
		c.state.Store(old)
		c.status.Store(int32(prev))
		c.refreshErr.Store(true)
		if derr := next.registry.Destroy(); derr != nil {
			err = errors.Join(err, derr)
		}
		c.logger.Error("refresh failed", "err", err)
		return RefreshedEvent{}, err
	}

	c.refreshErr.Store(false)
	c.generation.Store(next.generation)
	c.status.Store(int32(StatusActive))
	if prev == StatusUnstarted {
		c.metrics.Activated()
	}
	if old != nil {
		if derr := old.registry.Destroy(); derr != nil {
			c.logger.Warn("destroying previous registry", "err", derr)
		}
	}
	span.SetAttributes(attribute.Int64("appctx.generation", int64(next.generation)))
	c.logger.Info("context refreshed",
		"generation", next.generation,
		"components", len(next.registry.Names()),
		"messages", next.messages.Catalog().Len())
	return RefreshedEvent{Context: c, Generation: next.generation, At: next.refreshed}, nil
}

// build assembles a complete state without touching the current one.
func (c *Context) build(ctx context.Context, providers []ServiceProvider) (*state, error) {
	b := container.NewBuilder()
	for _, d := range c.definitions {
		b.Add(d)
	}
	if err := registerAll(providers, b); err != nil {
		return nil, err
	}

	gen := c.generation.Load() + 1
	opts := []container.Option{
		container.WithLabel(fmt.Sprintf("%s#%d", c.displayName, gen)),
		container.WithPostProcessor(awareInjector{c: c}),
		container.WithObserver(func(op string, err error) { c.metrics.Lookup(c.metricLabel, op, err) }),
	}
	for _, pp := range c.post {
		opts = append(opts, container.WithPostProcessor(pp))
	}
	if c.parent != nil {
		opts = append(opts, container.WithParent(c.parent))
	}
	registry, err := b.Build(opts...)
	if err != nil {
		return nil, err
	}

	bundles := append([]message.Bundle(nil), c.bundles...)
	for _, load := range c.loaders {
		more, err := load(ctx, c.resources)
		if err != nil {
			return nil, fmt.Errorf("message loader: %w", err)
		}
		bundles = append(bundles, more...)
	}
	more, err := collectMessages(ctx, providers, c.resources)
	if err != nil {
		return nil, err
	}
	bundles = append(bundles, more...)

	srcOpts := []message.SourceOption{
		message.WithMissObserver(func(string, language.Tag) { c.metrics.MessageMiss(c.metricLabel) }),
	}
	if c.parent != nil {
		srcOpts = append(srcOpts, message.WithParent(messageParent{c.parent}))
	}
	if c.keyAsDefault {
		srcOpts = append(srcOpts, message.WithKeyAsDefault())
	}
	catalog := message.NewCatalog(c.defaultLocale, bundles...)

	return &state{
		registry:   registry,
		messages:   message.NewSource(catalog, srcOpts...),
		generation: gen,
		refreshed:  c.now(),
	}, nil
}

// Start publishes a StartedEvent.
func (c *Context) Start(ctx context.Context) error {
	return c.Publish(ctx, StartedEvent{Context: c, At: c.now()})
}

// Close publishes a ClosedEvent, closes owned children in reverse creation
// order, destroys the registry and marks the context Closed. Closing twice
// is a no-op. Identity accessors keep working afterwards.
//
// No lock is held while the event is published or children close, so
// listeners may call back into the context. Once Close has begun, Refresh
// and NewChild fail with ReasonClosed.
func (c *Context) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	prev := c.Status()

	var errs []error
	if prev.live() {
		if err := c.Publish(context.Background(), ClosedEvent{Context: c, At: c.now()}); err != nil {
			errs = append(errs, err)
		}
	}

	c.lifeMu.Lock()
	children := c.children
	c.children = nil
	c.lifeMu.Unlock()
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("child %s: %w", children[i].id, err))
		}
	}

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	c.status.Store(int32(StatusClosed))
	if st := c.state.Load(); st != nil {
		if err := st.registry.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	if prev.live() {
		c.metrics.Deactivated()
	}
	c.logger.Info("context closed")
	return errors.Join(errs...)
}

// NewChild creates and refreshes a child scope owned by c: closing c closes
// the child. The child delegates every capability to c.
func (c *Context) NewChild(ctx context.Context, opts ...Option) (*Context, error) {
	if !c.Status().live() || c.closing.Load() {
		return nil, c.stateError("NewChild", c.inactiveReason())
	}
	child := New(append([]Option{
		WithParent(c),
		WithLogger(c.logger),
		WithMetrics(c.metrics),
		WithClock(c.now),
		withTracer(c.tracer),
	}, opts...)...)
	if err := child.Refresh(ctx); err != nil {
		return nil, err
	}

	c.lifeMu.Lock()
	if c.closing.Load() {
		c.lifeMu.Unlock()
		_ = child.Close()
		return nil, c.stateError("NewChild", errors.ReasonClosed)
	}
	c.children = append(c.children, child)
	c.lifeMu.Unlock()
	return child, nil
}

// AutowireFactory returns the live registry for construction machinery. It
// fails with distinct reasons when the context is closed, was never
// refreshed, or its refresh failed and left no registry.
func (c *Context) AutowireFactory() (*container.Registry, error) {
	switch c.Status() {
	case StatusClosed:
		return nil, c.stateError("AutowireFactory", errors.ReasonClosed)
	case StatusUnstarted:
		if c.refreshErr.Load() {
			return nil, c.stateError("AutowireFactory", errors.ReasonNoFactory)
		}
		return nil, c.stateError("AutowireFactory", errors.ReasonNotInitialized)
	}
	st := c.state.Load()
	if st == nil {
		return nil, c.stateError("AutowireFactory", errors.ReasonNoFactory)
	}
	return st.registry, nil
}

// live returns the current state if capabilities may be used.
func (c *Context) live(op string) (*state, error) {
	s := c.Status()
	if !s.live() {
		return nil, c.stateError(op, c.inactiveReason())
	}
	st := c.state.Load()
	if st == nil {
		return nil, c.stateError(op, errors.ReasonNotInitialized)
	}
	return st, nil
}

func (s Status) live() bool { return s == StatusActive || s == StatusRefreshing }

func (c *Context) inactiveReason() errors.Reason {
	if c.Status() == StatusClosed || c.closing.Load() {
		return errors.ReasonClosed
	}
	return errors.ReasonNotInitialized
}

func (c *Context) stateError(op string, reason errors.Reason) error {
	return &errors.StateError{Context: c.displayName, State: c.Status().String(), Operation: op, Reason: reason}
}
