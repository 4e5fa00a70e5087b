package app

import (
	"context"
	"net/http"
	"time"

	"github.com/km-arc/go-appcontext/framework/config"
	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/errors"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/watch"
)

// Version is the framework version reported by the CLI.
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Application is the root context of a served process. It embeds the
// Context so user code calls app.Get(), app.Message() and app.Refresh()
// directly, and adds the process concerns: configuration, the HTTP server
// and file watching.
type Application struct {
	*Context
	cfg *config.Config
}

// NewApplication creates an unstarted root context shaped by cfg. opts are
// applied after the configuration-derived options, so they win.
//
//	application, err := app.NewApplication(cfg, app.WithProviders(...))
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	tag, err := message.ParseLocale(cfg.Context.DefaultLocale)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithApplicationName(cfg.App.Name),
		WithDefaultLocale(tag),
		WithReloadable(cfg.Context.Reloadable),
		WithEnvironment(config.NewEnvironment(
			config.WithProfiles(cfg.Context.Profiles...),
			config.WithSystemEnv(),
		)),
	}
	if cfg.Context.ID != "" {
		base = append(base, WithID(cfg.Context.ID))
	}
	if cfg.Context.DisplayName != "" {
		base = append(base, WithDisplayName(cfg.Context.DisplayName))
	}
	return &Application{Context: New(append(base, opts...)...), cfg: cfg}, nil
}

// Config returns the configuration the application was built from.
func (a *Application) Config() *config.Config { return a.cfg }

// Handler serves every request through the "router" component of the
// current generation, so a refresh swaps routes without restarting the
// server.
func (a *Application) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, err := container.Get[http.Handler](a.Context, "router")
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, errors.ErrIllegalState):
				status = http.StatusServiceUnavailable
			case errors.IsNotFound(err):
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// Run refreshes the context if needed, publishes StartedEvent, serves HTTP
// on the configured port and, for reloadable contexts, refreshes on changes
// under the watched directories. It returns after ctx ends and the server
// has shut down; the context is closed on the way out.
func (a *Application) Run(ctx context.Context) error {
	if a.Status() == StatusUnstarted {
		if err := a.Refresh(ctx); err != nil {
			return err
		}
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("close failed", "err", err)
		}
	}()
	if err := a.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.IsReloadable() && len(a.cfg.Context.Watch) > 0 {
		a.watch(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.App.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	a.logger.Info("serving",
		"app", a.cfg.App.Name,
		"addr", "http://localhost"+srv.Addr,
		"env", a.cfg.App.Env)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func (a *Application) watch(ctx context.Context) {
	wcfg := watch.DefaultConfig(a.cfg.Context.Watch...)
	if a.cfg.Context.WatchDebounce > 0 {
		wcfg.DebounceDur = a.cfg.Context.WatchDebounce
	}
	wcfg.Logger = a.logger
	w, err := watch.New(wcfg)
	if err != nil {
		a.logger.Error("watcher disabled", "err", err)
		return
	}
	go func() {
		if err := w.Run(ctx, a.Context); err != nil {
			a.logger.Error("watcher stopped", "err", err)
		}
	}()
}

// ── Environment helpers ───────────────────────────────────────────────────────

// Env returns app.env.
func (a *Application) Env() string        { return a.cfg.App.Env }
func (a *Application) IsLocal() bool      { return a.Env() == "local" }
func (a *Application) IsProduction() bool { return a.Env() == "production" }
func (a *Application) IsTesting() bool    { return a.Env() == "testing" }
func (a *Application) IsDebug() bool      { return a.cfg.App.Debug }
