package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-appcontext/framework/app"
)

type resourceView struct {
	Location string    `json:"location"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

func newResourcesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resources <pattern>",
		Short: "Resolve a resource location or pattern",
		Long: `Resolve an exact location or an Ant-style pattern against the root
context's resource spaces and print the matches as JSON.

Examples:
  appctx resources 'i18n/**/*.yaml'
  appctx resources 's3:bundles/*.yaml'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, opts, func(a *app.Application) error {
				handles, err := a.Resources(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := make([]resourceView, 0, len(handles))
				for _, h := range handles {
					out = append(out, resourceView{Location: h.Location, Size: h.Size, ModTime: h.ModTime})
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}
