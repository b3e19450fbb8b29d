package commands

import (
	"context"
	"encoding/json"
	"flag"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/output"
	"taskdeck/internal/store"
	"taskdeck/internal/view"
)

func init() {
	Register(&StatsCmd{})
}

// StatsCmd prints totals over the active tasks.
type StatsCmd struct {
	json bool
}

func (c *StatsCmd) Name() string      { return "stats" }
func (c *StatsCmd) Aliases() []string { return nil }
func (c *StatsCmd) Synopsis() string  { return "Show task statistics" }
func (c *StatsCmd) Usage() string     { return "taskdeck stats [--json]" }
func (c *StatsCmd) NeedsStore() bool  { return true }

func (c *StatsCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.json, "json", false, "")
}

func (c *StatsCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	tasks, err := store.Fetch(ctx, st, cfg.Owner)
	if err != nil {
		return fail(errOut, err)
	}
	s := view.ComputeStats(tasks)

	if c.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fail(errOut, err)
		}
		return exitcode.Success
	}
	output.FormatStats(out, s)
	return exitcode.Success
}
