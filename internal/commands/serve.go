package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/identity"
	"taskdeck/internal/logger"
	"taskdeck/internal/scheduler"
	"taskdeck/internal/server"
	"taskdeck/internal/store"
)

const shutdownTimeout = 30 * time.Second

func init() {
	Register(&ServeCmd{})
}

// ServeCmd runs the HTTP API with one archival scheduler per active owner.
type ServeCmd struct {
	addr string
}

func (c *ServeCmd) Name() string      { return "serve" }
func (c *ServeCmd) Aliases() []string { return nil }
func (c *ServeCmd) Synopsis() string  { return "Run the HTTP API" }
func (c *ServeCmd) Usage() string     { return "taskdeck serve [--addr <host:port>]" }
func (c *ServeCmd) NeedsStore() bool  { return true }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	auth, err := identity.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fail(errOut, err)
	}
	addr := c.addr
	if addr == "" {
		addr = cfg.ServerAddr
	}
	log := logger.FromContext(ctx)

	pool := scheduler.NewPool(ctx, st, engine(cfg), scheduler.Config{SweepInterval: cfg.SweepInterval},
		scheduler.WithClock(cfg.Now),
		scheduler.WithLogger(log),
	)
	srv := server.New(st, engine(cfg), auth, pool, server.Config{
		Location:   cfg.Loc(),
		RequestLog: errOut,
		Now:        cfg.Now,
		Logger:     log,
	})

	// archival for the CLI owner starts before any request arrives
	pool.Get(cfg.Owner)

	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.Listen(addr) }()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": srv.Shutdown,
		"schedulers": func(ctx context.Context) error {
			return pool.Close()
		},
	})

	select {
	case err := <-listenErr:
		if err == nil {
			// Listen returns as soon as shutdown starts; the ops may still be
			// draining requests that use st.
			code := <-wait
			log.Info("server exited", "code", code)
			return code
		}
		if cerr := pool.Close(); cerr != nil {
			log.Error("scheduler pool failed", "error", cerr)
		}
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	case code := <-wait:
		log.Info("server exited", "code", code)
		return code
	}
}
