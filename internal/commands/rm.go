package commands

import (
	"context"
	"flag"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/store"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	viewFlags
}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete tasks" }
func (c *RmCmd) Usage() string     { return "taskdeck rm [--filter <view>] [--search <q>] <ref>..." }
func (c *RmCmd) NeedsStore() bool  { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	tasks, err := c.resolve(ctx, cfg, st, args)
	if err != nil {
		return fail(errOut, err)
	}
	for _, t := range tasks {
		if err := st.Delete(ctx, t.ID); err != nil {
			return fail(errOut, err)
		}
	}
	return ok(cfg, out)
}
