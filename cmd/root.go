// Package cmd is the appctx command line: it serves an application context
// and queries one from the shell.
package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/km-arc/go-appcontext/framework/app"
	"github.com/km-arc/go-appcontext/framework/config"
	"github.com/km-arc/go-appcontext/framework/metrics"
	"github.com/km-arc/go-appcontext/framework/providers"
)

var version = app.Version

// options are the persistent flags shared by every subcommand.
type options struct {
	cfgFile  string
	envFiles []string
	logLevel string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "appctx",
		Short:         "Hierarchical application context server",
		Long:          `Builds an application context from configuration, then serves its admin API or answers one-off queries about components, messages and resources.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts.logLevel)
		},
	}
	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "",
		"config file (YAML)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil,
		".env files to load (default: .env)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info",
		"log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newComponentsCmd(opts),
		newMessageCmd(opts),
		newResourcesCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) { version = v }

func setupLogging(w io.Writer, level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})))
	return nil
}

// bootstrap loads configuration and assembles an unstarted application with
// the framework providers. The returned cleanup closes what bootstrap opened
// besides the application itself.
func bootstrap(ctx context.Context, opts *options) (*app.Application, func(), error) {
	cfg, v, err := config.LoadWithViper(opts.cfgFile, opts.envFiles...)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}

	var db *sql.DB
	cleanup := func() {}
	if cfg.Context.MessageDB != "" {
		if db, err = providers.OpenMessageDB(cfg.Context.MessageDB); err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = db.Close() }
	}

	resOpts, err := providers.ResourceOptions(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	appOpts := append(resOpts,
		app.WithLogger(slog.Default()),
		app.WithMetrics(m),
		app.WithEnvironment(config.EnvironmentFrom(cfg, v)),
		app.WithProviders(providers.Framework(cfg, m, reg, db)...),
	)
	a, err := app.NewApplication(cfg, appOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// withApplication bootstraps, refreshes, runs fn and closes everything.
func withApplication(cmd *cobra.Command, opts *options, fn func(a *app.Application) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, cleanup, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = a.Close() }()
	if err := a.Refresh(ctx); err != nil {
		return err
	}
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
