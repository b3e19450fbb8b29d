package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/output"
	"taskdeck/internal/store"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskdeck` (no args) and `taskdeck list`.
type ListCmd struct {
	viewFlags
	json bool
}

// SetFilter sets the view filter (for testing).
func (c *ListCmd) SetFilter(filter, search string) {
	c.filter, c.search = filter, search
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks in a view" }
func (c *ListCmd) Usage() string {
	return "taskdeck list [--filter all|pending|completed|important|archive] [--search <q>] [--json]"
}
func (c *ListCmd) NeedsStore() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
	fs.BoolVar(&c.json, "json", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	res, _, err := c.load(ctx, cfg, st)
	if err != nil {
		return fail(errOut, err)
	}

	if c.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fail(errOut, err)
		}
		return exitcode.Success
	}

	if len(res.Tasks) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
	} else {
		output.FormatTasks(out, res.Tasks, cfg.Now(), cfg.Loc())
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, output.Separator)
		output.FormatCounts(out, res.Counts, res.Mode)
	}
	return exitcode.Success
}
