// Package commands holds the taskdeck subcommands and the registry the
// dispatcher looks them up in.
package commands

import (
	"context"
	"flag"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/store"
)

// Command is one taskdeck subcommand.
type Command interface {
	Name() string
	Aliases() []string

	// Synopsis is the one-line summary shown by help; Usage the full form.
	Synopsis() string
	Usage() string

	// NeedsStore reports whether Run works on tasks. When false the
	// dispatcher skips opening a store and st is nil.
	NeedsStore() bool

	RegisterFlags(fs *flag.FlagSet)

	// Run gets the positional args left after flag parsing and returns an
	// exitcode value. Output goes to out, diagnostics to errOut.
	Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int
}
