package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var port string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API until interrupted",
		Long: `Refreshes the root context, publishes the started event and serves the
admin API on app.port. Reloadable contexts refresh when files under
context.watch change, and on POST /refresh.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer cleanup()
			if port != "" {
				a.Config().App.Port = port
			}
			return a.Run(ctx)
		},
	}
	c.Flags().StringVarP(&port, "port", "p", "", "override app.port")
	return c
}
