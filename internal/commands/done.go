package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

func init() {
	Register(&DoneCmd{})
	Register(&UndoCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct {
	viewFlags
}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string  { return "Mark tasks completed" }
func (c *DoneCmd) Usage() string     { return "taskdeck done [--filter <view>] [--search <q>] <ref>..." }
func (c *DoneCmd) NeedsStore() bool  { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	tasks, err := c.resolve(ctx, cfg, st, args)
	if err != nil {
		return fail(errOut, err)
	}
	lc := engine(cfg)
	now := cfg.Now()

	for _, t := range tasks {
		updated, req, err := lc.MarkCompleted(t, now)
		if err != nil {
			return fail(errOut, fmt.Errorf("%s: %w", t.Title, err))
		}
		if req == nil {
			continue
		}
		if err := st.Update(ctx, t.ID, task.StatePatch(updated, now)); err != nil {
			return fail(errOut, err)
		}
		if !cfg.Quiet {
			fmt.Fprintf(out, "%s: archives at %s\n", t.Title, req.At.In(cfg.Loc()).Format("Jan 2, 3:04 PM"))
		}
	}
	return ok(cfg, out)
}

// UndoCmd implements the undo command. It reopens completed and archived tasks.
type UndoCmd struct {
	viewFlags
}

func (c *UndoCmd) Name() string      { return "undo" }
func (c *UndoCmd) Aliases() []string { return []string{"reopen"} }
func (c *UndoCmd) Synopsis() string  { return "Mark tasks pending again" }
func (c *UndoCmd) Usage() string     { return "taskdeck undo [--filter <view>] [--search <q>] <ref>..." }
func (c *UndoCmd) NeedsStore() bool  { return true }

func (c *UndoCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
}

func (c *UndoCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	tasks, err := c.resolve(ctx, cfg, st, args)
	if err != nil {
		return fail(errOut, err)
	}
	lc := engine(cfg)
	now := cfg.Now()

	for _, t := range tasks {
		if t.Status() == task.StatusPending {
			continue
		}
		if err := st.Update(ctx, t.ID, task.StatePatch(lc.MarkPending(t), now)); err != nil {
			return fail(errOut, err)
		}
	}
	return ok(cfg, out)
}
