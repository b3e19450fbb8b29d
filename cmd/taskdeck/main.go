// Package main is the entry point for the taskdeck CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"taskdeck/internal/backend/googletasks"
	"taskdeck/internal/cli"
	"taskdeck/internal/commands"
	"taskdeck/internal/config"
	"taskdeck/internal/logger"
	"taskdeck/internal/notify"
	"taskdeck/internal/store"
	"taskdeck/internal/store/sqlstore"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg, err := config.Load(); err == nil {
		ctx = logger.Context(ctx, logger.Setup(cfg.Logger, os.Stderr))
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, openStore)
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// openStore opens the backend selected by TASKDECK_STORE.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreGoogleTasks:
		return googletasks.New(ctx, cfg)
	case config.StoreSQLite, "":
		var n notify.Notifier
		if cfg.RedisAddr != "" {
			r, err := notify.Dial(ctx, cfg.RedisAddr)
			if err != nil {
				return nil, err
			}
			n = r
		}
		if cfg.DBPath == "" {
			if err := cfg.EnsureDir(); err != nil {
				return nil, fmt.Errorf("create config directory: %w", err)
			}
		}
		st, err := sqlstore.Open(cfg.DatabasePath(), n, cfg.Debug)
		if err != nil {
			if n != nil {
				n.Close()
			}
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
