package commands

import (
	"context"
	"flag"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

func init() {
	Register(&StarCmd{})
}

// StarCmd toggles the important flag of tasks.
type StarCmd struct {
	viewFlags
}

func (c *StarCmd) Name() string      { return "star" }
func (c *StarCmd) Aliases() []string { return nil }
func (c *StarCmd) Synopsis() string  { return "Toggle important" }
func (c *StarCmd) Usage() string     { return "taskdeck star [--filter <view>] [--search <q>] <ref>..." }
func (c *StarCmd) NeedsStore() bool  { return true }

func (c *StarCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
}

func (c *StarCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	tasks, err := c.resolve(ctx, cfg, st, args)
	if err != nil {
		return fail(errOut, err)
	}
	now := cfg.Now()
	for _, t := range tasks {
		v := !t.IsImportant
		_, patch, err := task.Update(t, task.Edit{Important: &v}, now, nil)
		if err != nil {
			return fail(errOut, err)
		}
		if err := st.Update(ctx, t.ID, patch); err != nil {
			return fail(errOut, err)
		}
	}
	return ok(cfg, out)
}
