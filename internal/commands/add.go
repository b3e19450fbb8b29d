package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	date      string
	clock     string
	desc      string
	attach    string
	important bool
	done      bool
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskdeck add --date <YYYY-MM-DD|today|tomorrow> [--time HH:MM] [--important] [--done] [--attach <file>] <title...> [-- <description...>]"
}
func (c *AddCmd) NeedsStore() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.date, "date", "", "")
	fs.StringVar(&c.date, "d", "", "")
	fs.StringVar(&c.clock, "time", "", "")
	fs.StringVar(&c.clock, "t", "", "")
	fs.StringVar(&c.desc, "desc", "", "")
	fs.StringVar(&c.attach, "attach", "", "")
	fs.BoolVar(&c.important, "important", false, "")
	fs.BoolVar(&c.important, "i", false, "")
	fs.BoolVar(&c.done, "done", false, "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	title, desc := splitTitle(args)
	if strings.TrimSpace(title) == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}
	if c.desc != "" {
		desc = c.desc
	}

	in := task.Input{
		Title:       title,
		Description: desc,
		Date:        parseDate(cfg, c.date),
		Time:        c.clock,
		Important:   c.important,
		Completed:   c.done,
		Location:    cfg.Loc(),
	}
	if c.attach != "" {
		a, err := readAttachment(c.attach)
		if err != nil {
			return fail(errOut, err)
		}
		in.Attachment = a
	}

	t, err := task.New(cfg.Owner, in, cfg.Now(), engine(cfg))
	if err != nil {
		return fail(errOut, err)
	}
	created, err := st.Create(ctx, t)
	if err != nil {
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "ok %s\n", created.ID)
	}
	return exitcode.Success
}

// splitTitle joins the words before "--" into the title and the words after
// it into the description.
func splitTitle(args []string) (title, desc string) {
	for i, a := range args {
		if a == "--" {
			return strings.Join(args[:i], " "), strings.Join(args[i+1:], " ")
		}
	}
	return strings.Join(args, " "), ""
}
