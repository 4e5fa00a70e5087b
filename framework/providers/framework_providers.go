// Package providers holds the service providers every served application
// registers: configuration, messages, metrics, lifecycle logging and the
// admin router.
package providers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite" // registers the "sqlite" driver for message tables

	"github.com/km-arc/go-appcontext/framework/app"
	"github.com/km-arc/go-appcontext/framework/config"
	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/event"
	gohttp "github.com/km-arc/go-appcontext/framework/http"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/metrics"
	"github.com/km-arc/go-appcontext/framework/resource"
	"github.com/km-arc/go-appcontext/framework/routing"
)

// Framework returns the framework providers in registration order. m, g and
// db may be nil.
func Framework(cfg *config.Config, m *metrics.Metrics, g prometheus.Gatherer, db *sql.DB) []app.ServiceProvider {
	return []app.ServiceProvider{
		&ConfigServiceProvider{Config: cfg},
		&MessageServiceProvider{Pattern: cfg.Context.Messages, DB: db, Table: cfg.Context.MessageTable},
		&MetricsServiceProvider{Metrics: m, Gatherer: g},
		&EventLogServiceProvider{},
		&RoutingServiceProvider{Token: cfg.Context.AdminToken},
	}
}

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration.
//
// Bound components:
//   - "config"  → *config.Config (alias "configuration")
type ConfigServiceProvider struct {
	app.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(b *container.Builder) error {
	if p.Config == nil {
		return fmt.Errorf("config provider: no configuration")
	}
	container.ProvideValue(b, "config", p.Config)
	b.Alias("config", "configuration")
	return nil
}

// ── MessageServiceProvider ────────────────────────────────────────────────────

// MessageServiceProvider contributes message bundles on every refresh: YAML
// files matching Pattern, then rows of Table when DB is set. Rows override
// files for the same key and locale.
//
// Bound components:
//   - "messages.db" → *sql.DB (only with DB)
type MessageServiceProvider struct {
	app.BaseProvider
	Pattern string
	DB      *sql.DB
	Table   string
}

func (p *MessageServiceProvider) Register(b *container.Builder) error {
	if p.DB != nil {
		container.ProvideValue(b, "messages.db", p.DB)
	}
	return nil
}

// Messages implements app.MessageProvider.
func (p *MessageServiceProvider) Messages(ctx context.Context, r resource.PatternResolver) ([]message.Bundle, error) {
	var bundles []message.Bundle
	if p.Pattern != "" {
		files, err := message.LoadYAML(ctx, r, p.Pattern)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, files...)
	}
	if p.DB != nil {
		rows, err := message.LoadSQL(ctx, p.DB, p.Table)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, rows...)
	}
	return bundles, nil
}

// OpenMessageDB opens the SQLite database holding the message table.
func OpenMessageDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("message db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("message db: %w", err)
	}
	return db, nil
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider exposes the context collectors as components.
//
// Bound components:
//   - "metrics"          → *metrics.Metrics
//   - "metrics.gatherer" → prometheus.Gatherer
type MetricsServiceProvider struct {
	app.BaseProvider
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func (p *MetricsServiceProvider) Register(b *container.Builder) error {
	if p.Metrics != nil {
		container.ProvideValue(b, "metrics", p.Metrics)
	}
	if p.Gatherer != nil {
		container.ProvideValue(b, "metrics.gatherer", p.Gatherer)
	}
	return nil
}

// ── EventLogServiceProvider ───────────────────────────────────────────────────

// EventLogServiceProvider logs lifecycle events. Boot runs on every refresh;
// the listener is a comparable value, so re-adding it is a no-op.
type EventLogServiceProvider struct {
	app.BaseProvider
}

func (p *EventLogServiceProvider) Register(*container.Builder) error { return nil }

func (p *EventLogServiceProvider) Boot(c *app.Context) error {
	_, err := c.AddListener(lifecycleLogger{logger: c.Logger()}, nil)
	return err
}

type lifecycleLogger struct {
	logger *slog.Logger
}

func (l lifecycleLogger) OnEvent(_ context.Context, e event.Event) error {
	switch ev := e.(type) {
	case app.RefreshedEvent:
		l.logger.Debug("event: refreshed", "source", ev.Context.ID(), "generation", ev.Generation)
	case app.StartedEvent:
		l.logger.Debug("event: started", "source", ev.Context.ID())
	case app.ClosedEvent:
		l.logger.Debug("event: closed", "source", ev.Context.ID())
	}
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider builds the admin router around the Inspector.
//
// Bound components:
//   - "inspector" → *gohttp.Inspector (receives its context when created)
//   - "router"    → *routing.Router
//
// Routes, when set, adds application routes after the admin ones. Token,
// when set, guards POST /refresh.
type RoutingServiceProvider struct {
	app.BaseProvider
	Routes func(r *routing.Router, l container.Lookup) error
	Token  string
}

func (p *RoutingServiceProvider) Register(b *container.Builder) error {
	container.Provide(b, "inspector", func(l container.Lookup) (*gohttp.Inspector, error) {
		g, _, err := container.Optional[prometheus.Gatherer](l)
		if err != nil {
			return nil, err
		}
		return gohttp.NewInspector(g).RequireToken(p.Token), nil
	})
	container.Provide(b, "router", func(l container.Lookup) (*routing.Router, error) {
		in, err := container.Get[*gohttp.Inspector](l, "inspector")
		if err != nil {
			return nil, err
		}
		logger, _, err := container.Optional[*slog.Logger](l)
		if err != nil {
			return nil, err
		}
		r := routing.New(logger)
		in.Routes(r)
		if p.Routes != nil {
			if err := p.Routes(r, l); err != nil {
				return nil, err
			}
		}
		return r, nil
	})
	return nil
}

// ── Resources ─────────────────────────────────────────────────────────────────

// ResourceOptions builds the resource spaces cfg describes: the resource
// root as the default and "file:" space, and "s3:" when a bucket is set.
func ResourceOptions(ctx context.Context, cfg *config.Config) ([]app.Option, error) {
	dir := resource.NewDirSpace(cfg.Context.ResourceRoot)
	opts := []app.Option{
		app.WithResourceSpace("", dir),
		app.WithResourceSpace("file", dir),
	}
	if s3cfg := cfg.Context.S3; s3cfg.Bucket != "" {
		space, err := resource.NewS3Space(ctx, resource.S3Config{
			Region:    s3cfg.Region,
			Bucket:    s3cfg.Bucket,
			Prefix:    s3cfg.Prefix,
			Endpoint:  s3cfg.Endpoint,
			PathStyle: s3cfg.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 resources: %w", err)
		}
		opts = append(opts, app.WithResourceSpace("s3", space))
	}
	return opts, nil
}

var (
	_ app.MessageProvider = (*MessageServiceProvider)(nil)
	_ event.Listener      = lifecycleLogger{}
)
