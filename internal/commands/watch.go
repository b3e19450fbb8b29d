package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/logger"
	"taskdeck/internal/output"
	"taskdeck/internal/scheduler"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
	"taskdeck/internal/view"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd runs the archival scheduler in the foreground and prints the view
// after every change.
type WatchCmd struct {
	viewFlags
	once bool
}

// SetOnce makes the command return after the first snapshot (for testing).
func (c *WatchCmd) SetOnce(once bool) {
	c.once = once
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Follow a view and archive tasks as they become due" }
func (c *WatchCmd) Usage() string {
	return "taskdeck watch [--filter <view>] [--search <q>] [--once]"
}
func (c *WatchCmd) NeedsStore() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	c.viewFlags.register(fs)
	fs.BoolVar(&c.once, "once", false, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	mode, err := view.ParseMode(c.filter)
	if err != nil {
		return fail(errOut, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := scheduler.New(st, engine(cfg), scheduler.Config{SweepInterval: cfg.SweepInterval},
		scheduler.WithClock(cfg.Now),
		scheduler.WithLogger(logger.FromContext(ctx)),
	)

	var (
		mu    sync.Mutex
		first = make(chan struct{})
		once  sync.Once
	)
	remove := s.OnSnapshot(func(tasks []task.Task) {
		mu.Lock()
		defer mu.Unlock()
		if runCtx.Err() != nil {
			return
		}
		res := view.Compute(tasks, mode, view.ParseQuery(c.search))
		fmt.Fprintln(out, output.Separator)
		if len(res.Tasks) == 0 {
			fmt.Fprintln(out, "no tasks found")
		}
		output.FormatTasks(out, res.Tasks, cfg.Now(), cfg.Loc())
		output.FormatCounts(out, res.Counts, res.Mode)
		once.Do(func() { close(first) })
	})
	defer remove()

	errc := make(chan error, 1)
	go func() { errc <- s.Run(runCtx, cfg.Owner) }()

	if c.once {
		select {
		case <-first:
			mu.Lock()
			cancel()
			mu.Unlock()
		case err := <-errc:
			return finish(errOut, err)
		}
	}
	return finish(errOut, <-errc)
}

func finish(errOut io.Writer, err error) int {
	if err != nil {
		return fail(errOut, err)
	}
	return exitcode.Success
}
