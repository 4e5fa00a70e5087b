package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-appcontext/framework/app"
	"github.com/km-arc/go-appcontext/framework/errors"
)

type componentView struct {
	Name    string   `json:"name"`
	Type    string   `json:"type,omitempty"`
	Scope   string   `json:"scope"`
	Primary bool     `json:"primary,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

func newComponentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "components [name]",
		Short: "List the root context's components as JSON",
		Long: `List every component defined on the root context, or describe one.

Examples:
  appctx components
  appctx components config
  appctx components | jq '.[].name'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, opts, func(a *app.Application) error {
				reg, err := a.AutowireFactory()
				if err != nil {
					return err
				}
				names := reg.Names()
				if len(args) == 1 {
					if !reg.Contains(args[0]) {
						return fmt.Errorf("component %q: %w", args[0], errors.ErrNotFound)
					}
					names = args
				}
				out := make([]componentView, 0, len(names))
				for _, name := range names {
					def, ok := reg.Definition(name)
					if !ok {
						continue
					}
					v := componentView{Name: def.Name, Scope: string(def.Scope), Primary: def.Primary, Aliases: def.Aliases}
					if def.Type != nil {
						v.Type = def.Type.String()
					}
					out = append(out, v)
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}
