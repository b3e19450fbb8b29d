package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdeck/internal/backend/googletasks"
	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/store"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd authorizes the Google Tasks store and saves the token.
type LoginCmd struct{}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authorize the Google Tasks store" }
func (c *LoginCmd) Usage() string     { return "taskdeck login [common flags]" }
func (c *LoginCmd) NeedsStore() bool  { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	if !cfg.HasOAuthClient() {
		fmt.Fprintf(errOut, "error: oauth_client.json not found in %s\n", cfg.Dir)
		fmt.Fprint(errOut, setupHint(cfg.Dir))
		return exitcode.AuthError
	}
	if cfg.HasToken() && googletasks.TokenValid(ctx, cfg) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	oauthConfig, err := googletasks.OAuthConfig(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	token, err := googletasks.Authorize(ctx, oauthConfig, func(url string) {
		fmt.Fprintln(errOut, "Open this URL in your browser:")
		fmt.Fprintln(errOut, url)
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if err := googletasks.SaveToken(cfg, token); err != nil {
		fmt.Fprintf(errOut, "error: save token: %v\n", err)
		return exitcode.AuthError
	}
	return ok(cfg, out)
}

func setupHint(dir string) string {
	return fmt.Sprintf(`
Google Tasks sync needs OAuth credentials of type "Desktop app":

  1. Enable the Tasks API: https://console.cloud.google.com/apis/library/tasks.googleapis.com
  2. Create the client:    https://console.cloud.google.com/apis/credentials
  3. Save the JSON file as %s/oauth_client.json

Then run 'taskdeck login' again and set TASKDECK_STORE=googletasks.
`, dir)
}
