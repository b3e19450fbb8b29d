package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/lifecycle"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
	"taskdeck/internal/view"
)

// viewFlags selects the view that numeric task references point into.
type viewFlags struct {
	filter string
	search string
}

func (v *viewFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&v.filter, "filter", "", "")
	fs.StringVar(&v.filter, "f", "", "")
	fs.StringVar(&v.search, "search", "", "")
	fs.StringVar(&v.search, "s", "", "")
}

// load fetches the owner's snapshot and computes the selected view.
func (v viewFlags) load(ctx context.Context, cfg *config.Config, st store.Store) (view.Result, []task.Task, error) {
	mode, err := view.ParseMode(v.filter)
	if err != nil {
		return view.Result{}, nil, err
	}
	tasks, err := store.Fetch(ctx, st, cfg.Owner)
	if err != nil {
		return view.Result{}, nil, err
	}
	return view.Compute(tasks, mode, view.ParseQuery(v.search)), tasks, nil
}

// resolve loads the view and resolves every reference in args against the
// same snapshot, so positions do not shift between writes.
func (v viewFlags) resolve(ctx context.Context, cfg *config.Config, st store.Store, args []string) ([]task.Task, error) {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		return nil, err
	}
	res, all, err := v.load(ctx, cfg, st)
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		t, err := ref.Resolve(res, all)
		if err != nil {
			return nil, err
		}
		if !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// engine returns the lifecycle engine for cfg.
func engine(cfg *config.Config) *lifecycle.Engine {
	return lifecycle.New(cfg.Delay())
}

// fail prints err and returns the exit code for it.
func fail(errOut io.Writer, err error) int {
	if errors.Is(err, ErrTaskRefRequired) {
		fmt.Fprintln(errOut, "error: task reference required")
		return exitcode.UserError
	}
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitcode.FromError(err)
}

// ok prints the success marker unless quiet.
func ok(cfg *config.Config, out io.Writer) int {
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// parseDate accepts YYYY-MM-DD as well as "today" and "tomorrow".
func parseDate(cfg *config.Config, s string) string {
	now := cfg.Now().In(cfg.Loc())
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return now.Format(task.DateLayout)
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(task.DateLayout)
	}
	return s
}

// readAttachment loads a file as a task attachment. Oversized files are
// rejected before they are read.
func readAttachment(path string) (*task.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	if info.IsDir() {
		return nil, &task.ValidationError{Field: "attachment", Reason: path + " is a directory"}
	}
	if err := task.CheckAttachmentSize(info.Size()); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	return task.NewAttachment(filepath.Base(path), data)
}
