package commands

import (
	"context"
	"flag"
	"io"
	"testing"

	"taskdeck/internal/config"
	"taskdeck/internal/store"
)

type stubCmd struct {
	name    string
	aliases []string
}

func (c stubCmd) Name() string                   { return c.name }
func (c stubCmd) Aliases() []string              { return c.aliases }
func (c stubCmd) Synopsis() string               { return "" }
func (c stubCmd) Usage() string                  { return "" }
func (c stubCmd) NeedsStore() bool               { return false }
func (c stubCmd) RegisterFlags(fs *flag.FlagSet) {}
func (c stubCmd) Run(ctx context.Context, cfg *config.Config, st store.Store, args []string, out, errOut io.Writer) int {
	return 0
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubCmd{name: "rm", aliases: []string{"delete"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(stubCmd{name: "add"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cmd, ok := r.Find("delete"); !ok || cmd.Name() != "rm" {
		t.Errorf("expected alias to resolve to rm, got %v %v", cmd, ok)
	}
	if _, ok := r.Find("remove"); ok {
		t.Error("expected unknown name to miss")
	}

	all := r.All()
	if len(all) != 2 || all[0].Name() != "add" || all[1].Name() != "rm" {
		t.Errorf("expected [add rm], got %v", all)
	}
}

func TestRegistry_Duplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubCmd{name: "rm", aliases: []string{"delete"}}); err != nil {
		t.Fatal(err)
	}
	tests := []stubCmd{
		{name: "rm"},
		{name: "delete"},
		{name: "drop", aliases: []string{"rm"}},
	}
	for _, c := range tests {
		err := r.Register(c)
		if err == nil {
			t.Errorf("expected duplicate error for %+v", c)
		}
	}
	if _, ok := r.Find("drop"); ok {
		t.Error("failed registration must not add the command")
	}
}

func TestDefaultRegistryAliases(t *testing.T) {
	for alias, want := range map[string]string{
		"ls": "list", "create": "add", "complete": "done", "reopen": "undo", "delete": "rm",
	} {
		cmd, ok := DefaultRegistry.Find(alias)
		if !ok || cmd.Name() != want {
			t.Errorf("expected %s -> %s", alias, want)
		}
	}
}
