package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. Only the flags given are changed.
type EditCmd struct {
	viewFlags
	title     *string
	desc      *string
	date      *string
	clock     *string
	important *bool
	completed *bool
	attach    string
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change fields of a task" }
func (c *EditCmd) Usage() string {
	return "taskdeck edit [--title T] [--desc D] [--date D] [--time HH:MM] [--important=bool] [--completed=bool] [--attach <file>] <ref>"
}
func (c *EditCmd) NeedsStore() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	*c = EditCmd{}
	c.viewFlags.register(fs)
	str := func(dst **string) func(string) error {
		return func(s string) error {
			*dst = &s
			return nil
		}
	}
	boolean := func(dst **bool) func(string) error {
		return func(s string) error {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			*dst = &v
			return nil
		}
	}
	fs.Func("title", "", str(&c.title))
	fs.Func("desc", "", str(&c.desc))
	fs.Func("date", "", str(&c.date))
	fs.Func("time", "", str(&c.clock))
	fs.Func("important", "", boolean(&c.important))
	fs.Func("completed", "", boolean(&c.completed))
	fs.StringVar(&c.attach, "attach", "", "")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: edit takes a single task reference")
		return exitcode.UserError
	}
	tasks, err := c.resolve(ctx, cfg, st, args)
	if err != nil {
		return fail(errOut, err)
	}
	existing := tasks[0]

	e := task.Edit{
		Title:       c.title,
		Description: c.desc,
		Time:        c.clock,
		Important:   c.important,
		Completed:   c.completed,
		Location:    cfg.Loc(),
	}
	if c.date != nil {
		d := parseDate(cfg, *c.date)
		e.Date = &d
	}
	if c.attach != "" {
		a, err := readAttachment(c.attach)
		if err != nil {
			return fail(errOut, err)
		}
		e.Attachment = a
	}

	_, patch, err := task.Update(existing, e, cfg.Now(), engine(cfg))
	if err != nil {
		return fail(errOut, err)
	}
	if patch.IsEmpty() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "nothing to change")
		}
		return exitcode.Success
	}
	if err := st.Update(ctx, existing.ID, patch); err != nil {
		return fail(errOut, err)
	}
	return ok(cfg, out)
}
