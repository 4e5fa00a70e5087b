// Package main is the entry point for the appctx command.
package main

import (
	"fmt"
	"os"

	"github.com/km-arc/go-appcontext/cmd"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if version != "dev" {
		cmd.SetVersion(fmt.Sprintf("%s (commit: %s)", version, commit))
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
