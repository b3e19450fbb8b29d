package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/identity"
	"taskdeck/internal/store"
)

func init() {
	Register(&TokenCmd{})
}

// TokenCmd mints an API token for the configured owner.
type TokenCmd struct {
	email string
}

func (c *TokenCmd) Name() string      { return "token" }
func (c *TokenCmd) Aliases() []string { return nil }
func (c *TokenCmd) Synopsis() string  { return "Print an API token for the owner" }
func (c *TokenCmd) Usage() string     { return "taskdeck token [--owner <id>] [--email <address>]" }
func (c *TokenCmd) NeedsStore() bool  { return false }

func (c *TokenCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

func (c *TokenCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	auth, err := identity.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fail(errOut, err)
	}
	token, err := auth.Issue(identity.Identity{OwnerID: cfg.Owner, Email: c.email})
	if err != nil {
		return fail(errOut, err)
	}
	fmt.Fprintln(out, token)
	return exitcode.Success
}
