package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-appcontext/framework/app"
	"github.com/km-arc/go-appcontext/framework/message"
)

func newMessageCmd(opts *options) *cobra.Command {
	var (
		locale string
		def    string
	)
	c := &cobra.Command{
		Use:   "message <key> [args...]",
		Short: "Resolve a message key",
		Long: `Resolve a message key against the root context's catalog and print it.
Numeric arguments are passed as numbers.

Examples:
  appctx message greeting Ana --locale fr_FR
  appctx message cart.items 1234 --locale de
  appctx message nav.home --default "Home"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, opts, func(a *app.Application) error {
				loc := locale
				if loc == "" {
					loc = a.Config().Context.DefaultLocale
				}
				tag, err := message.ParseLocale(loc)
				if err != nil {
					return err
				}
				margs := make([]any, 0, len(args)-1)
				for _, s := range args[1:] {
					margs = append(margs, argValue(s))
				}
				var text string
				if def != "" {
					text, err = a.MessageOr(args[0], def, tag, margs...)
				} else {
					text, err = a.Message(args[0], tag, margs...)
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			})
		},
	}
	c.Flags().StringVarP(&locale, "locale", "l", "", "locale (default: context.default_locale)")
	c.Flags().StringVarP(&def, "default", "d", "", "text used when the key is missing")
	return c
}

func argValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
