package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/logger"
	"taskdeck/internal/scheduler"
	"taskdeck/internal/store"
)

func init() {
	Register(&SweepCmd{})
}

// SweepCmd archives every completed task whose delay has elapsed.
type SweepCmd struct{}

func (c *SweepCmd) Name() string      { return "sweep" }
func (c *SweepCmd) Aliases() []string { return nil }
func (c *SweepCmd) Synopsis() string  { return "Archive completed tasks that are due" }
func (c *SweepCmd) Usage() string     { return "taskdeck sweep" }
func (c *SweepCmd) NeedsStore() bool  { return true }

func (c *SweepCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *SweepCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	s := scheduler.New(st, engine(cfg), scheduler.Config{},
		scheduler.WithClock(cfg.Now),
		scheduler.WithLogger(logger.FromContext(ctx)),
	)
	ids, err := s.SweepOwner(ctx, cfg.Owner)
	if err != nil {
		return fail(errOut, err)
	}
	if !cfg.Quiet {
		fmt.Fprintf(out, "archived %d\n", len(ids))
	}
	return exitcode.Success
}
