// Package app composes the registry, event bus, message source, resource
// resolver and environment into a hierarchical application context.
//
// A Context is created with New, activated by Refresh and released by Close.
// Lookups, publishes, message and resource resolution consult the local
// level first and then the parent context; listings stay local. A
// reloadable context can be refreshed again: the new registry and message
// catalog are built completely and swapped in behind one atomic pointer, so
// concurrent callers observe either the old or the new state, never a mix.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/config"
	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/event"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/metrics"
	"github.com/km-arc/go-appcontext/framework/resource"
)

const tracerName = "github.com/km-arc/go-appcontext/framework/app"

// Status is a context lifecycle state.
type Status int32

const (
	StatusUnstarted Status = iota
	StatusActive
	StatusRefreshing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUnstarted:
		return "unstarted"
	case StatusActive:
		return "active"
	case StatusRefreshing:
		return "refreshing"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageLoader produces bundles on every refresh.
type MessageLoader func(ctx context.Context, r resource.PatternResolver) ([]message.Bundle, error)

// Option configures a Context.
type Option func(*Context)

func WithID(id string) Option { return func(c *Context) { c.id = id } }

func WithApplicationName(name string) Option { return func(c *Context) { c.appName = name } }

func WithDisplayName(name string) Option { return func(c *Context) { c.displayName = name } }

// WithParent makes parent the delegation target of every capability.
func WithParent(parent *Context) Option { return func(c *Context) { c.parent = parent } }

func WithProviders(ps ...ServiceProvider) Option {
	return func(c *Context) {
		for _, p := range ps {
			c.providers.Register(p)
		}
	}
}

// WithDefinitions adds definitions registered on every refresh, before the
// providers run.
func WithDefinitions(defs ...container.Definition) Option {
	return func(c *Context) { c.definitions = append(c.definitions, defs...) }
}

// WithPostProcessor adds a post-processor that runs after aware injection.
func WithPostProcessor(pp container.PostProcessor) Option {
	return func(c *Context) { c.post = append(c.post, pp) }
}

// WithResourceSpace registers a space under scheme; "" sets the default.
func WithResourceSpace(scheme string, s resource.Space) Option {
	return func(c *Context) {
		if scheme == "" {
			c.defaultSpace = s
			return
		}
		c.spaces[scheme] = s
	}
}

// WithMessages adds static bundles to every catalog the context builds.
func WithMessages(bundles ...message.Bundle) Option {
	return func(c *Context) { c.bundles = append(c.bundles, bundles...) }
}

// WithMessageLoader adds a loader run on every refresh.
func WithMessageLoader(l MessageLoader) Option {
	return func(c *Context) { c.loaders = append(c.loaders, l) }
}

// WithDefaultLocale sets the catalog's default locale (English otherwise).
func WithDefaultLocale(tag language.Tag) Option {
	return func(c *Context) { c.defaultLocale = tag }
}

// WithKeyAsDefaultMessage renders unresolvable keys as themselves.
func WithKeyAsDefaultMessage() Option { return func(c *Context) { c.keyAsDefault = true } }

func WithEnvironment(env *config.Environment) Option { return func(c *Context) { c.env = env } }

// WithReloadable allows Refresh after the first activation.
func WithReloadable(reloadable bool) Option { return func(c *Context) { c.reloadable = reloadable } }

func WithLogger(l *slog.Logger) Option { return func(c *Context) { c.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Context) { c.metrics = m } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Context) { c.tracer = tp.Tracer(tracerName) }
}

func withTracer(t trace.Tracer) Option { return func(c *Context) { c.tracer = t } }

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option { return func(c *Context) { c.now = now } }

// state is everything a refresh replaces.
type state struct {
	registry   *container.Registry
	messages   *message.Source
	generation uint64
	refreshed  time.Time
}

// Context is one node of the context tree.
type Context struct {
	id          string
	appName     string
	metricLabel string
	displayName string
	startup     time.Time
	parent      *Context
	reloadable  bool

	definitions   []container.Definition
	post          []container.PostProcessor
	providers     *ProviderRegistry
	bundles       []message.Bundle
	loaders       []MessageLoader
	defaultLocale language.Tag
	keyAsDefault  bool
	defaultSpace  resource.Space
	spaces        map[string]resource.Space

	env       *config.Environment
	bus       *event.Bus
	resources *resource.Resolver
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time

	status     atomic.Int32
	state      atomic.Pointer[state]
	generation atomic.Uint64
	refreshErr atomic.Bool
	closing    atomic.Bool

	// lifeMu serialises Refresh, Close and child creation.
	lifeMu   sync.Mutex
	children []*Context
}

// New builds an unstarted context. Call Refresh to activate it.
func New(opts ...Option) *Context {
	c := &Context{
		providers:     NewProviderRegistry(),
		spaces:        make(map[string]resource.Space),
		defaultLocale: language.English,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.displayName == "" {
		c.displayName = "Context@" + c.id
	}
	c.metricLabel = c.appName
	if c.metricLabel == "" && c.parent != nil {
		c.metricLabel = c.parent.metricLabel
	}
	if c.metricLabel == "" {
		c.metricLabel = "default"
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("context", c.id)
	if c.tracer == nil {
		c.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	c.startup = c.now()

	if c.env == nil {
		envOpts := []config.EnvOption{config.WithSystemEnv()}
		if c.parent != nil {
			envOpts = append(envOpts, config.WithParentEnvironment(c.parent.env))
		}
		c.env = config.NewEnvironment(envOpts...)
	}

	busOpts := []event.Option{event.WithObserver(c.observePublish)}
	resOpts := make([]resource.Option, 0, len(c.spaces)+1)
	for scheme, s := range c.spaces {
		resOpts = append(resOpts, resource.WithSpace(scheme, s))
	}
	if c.parent != nil {
		busOpts = append(busOpts, event.WithParent(c.parent))
		resOpts = append(resOpts, resource.WithParent(resourceParent{c.parent}))
	}
	c.bus = event.NewBus(busOpts...)
	c.resources = resource.NewResolver(c.defaultSpace, resOpts...)
	return c
}

// ── Identity ──────────────────────────────────────────────────────────────────
// Identity accessors work in every state, Closed included.

func (c *Context) ID() string              { return c.id }
func (c *Context) ApplicationName() string { return c.appName }
func (c *Context) DisplayName() string     { return c.displayName }
func (c *Context) StartupDate() time.Time  { return c.startup }

// Parent returns the parent context, or nil for a root.
func (c *Context) Parent() *Context { return c.parent }

func (c *Context) Status() Status { return Status(c.status.Load()) }

func (c *Context) IsReloadable() bool { return c.reloadable }

// Generation counts successful refreshes.
func (c *Context) Generation() uint64 { return c.generation.Load() }

func (c *Context) Logger() *slog.Logger { return c.logger }

// Providers returns the context's provider registry. Providers added after
// activation take effect on the next refresh.
func (c *Context) Providers() *ProviderRegistry { return c.providers }

func (c *Context) String() string {
	return fmt.Sprintf("%s [%s]", c.displayName, c.Status())
}

// Children returns the context-owned child scopes in creation order.
func (c *Context) Children() []*Context {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return slices.Clone(c.children)
}

func (c *Context) observePublish(e event.Event, delivered, failures int) {
	c.metrics.Published(c.metricLabel, failures)
	if failures > 0 {
		c.logger.Warn("listener failures", "event", fmt.Sprintf("%T", e), "delivered", delivered, "failures", failures)
	}
}
