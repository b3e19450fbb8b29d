package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/output"
	"taskdeck/internal/store"
)

func init() {
	Register(&ShowCmd{})
}

// ShowCmd prints every field of a task.
type ShowCmd struct {
	viewFlags
}

func (c *ShowCmd) Name() string      { return "show" }
func (c *ShowCmd) Aliases() []string { return nil }
func (c *ShowCmd) Synopsis() string  { return "Show task details" }
func (c *ShowCmd) Usage() string     { return "taskdeck show [--filter <view>] [--search <q>] <ref>..." }
func (c *ShowCmd) NeedsStore() bool  { return true }

func (c *ShowCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
}

func (c *ShowCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	tasks, err := c.resolve(ctx, cfg, st, args)
	if err != nil {
		return fail(errOut, err)
	}
	for i, t := range tasks {
		if i > 0 {
			fmt.Fprintln(out)
		}
		output.FormatDetail(out, t, cfg.Now(), cfg.Loc())
	}
	return exitcode.Success
}
