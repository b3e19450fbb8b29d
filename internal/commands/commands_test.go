package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"taskdeck/internal/commands"
	"taskdeck/internal/config"
	"taskdeck/internal/exitcode"
	"taskdeck/internal/identity"
	"taskdeck/internal/logger"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
	"taskdeck/internal/testutil"
	"taskdeck/internal/view"
)

const owner = "alice"

var now = time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

func newConfig(t *testing.T, quiet bool) *config.Config {
	t.Helper()
	return &config.Config{
		Dir:           t.TempDir(),
		Quiet:         quiet,
		Owner:         owner,
		Location:      time.UTC,
		ArchivalDelay: 24 * time.Hour,
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		Clock:         func() time.Time { return now },
	}
}

// runCommand parses args with the command's flags and runs it against st.
func runCommand(t *testing.T, cmd commands.Command, st store.Store, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), newConfig(t, quiet), st, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func newStore() *testutil.FakeStore {
	st := testutil.NewFakeStore()
	st.Now = func() time.Time { return now }
	return st
}

func seed(st *testutil.FakeStore, id, title string, age time.Duration, deadline time.Time) task.Task {
	return st.Seed(task.Task{
		ID:          id,
		OwnerID:     owner,
		Title:       title,
		Description: title + " notes",
		Deadline:    task.TimePtr(deadline),
		CreatedAt:   task.TimePtr(now.Add(-age)),
		UpdatedAt:   now.Add(-age),
	})
}

// seedTwo stores an important task due today and an older one due tomorrow.
func seedTwo(st *testutil.FakeStore) {
	milk := seed(st, "t1", "Buy milk", time.Hour, time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC))
	milk.IsImportant = true
	st.Seed(milk)
	seed(st, "t2", "Call mom", 2*time.Hour, time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC))
}

func assertCode(t *testing.T, want, got int, stderr string) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d (stderr %q)", want, got, stderr)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, nil, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "taskdeck 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

func TestVersionCommand_Verbose(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, []string{"-v"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	if !strings.HasPrefix(stdout, "taskdeck 0.1.0\ngo:     go") {
		t.Errorf("expected version and runtime, got %q", stdout)
	}
	if !strings.Contains(stdout, "store:  sqlite\n") {
		t.Errorf("expected default store, got %q", stdout)
	}
}

func TestHelpCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, nil, nil, false)

	assertCode(t, exitcode.Success, code, stderr)
	for _, want := range []string{"Usage:", "  add", "  watch", "--owner <id>"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

func TestHelpCommand_Topic(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.HelpCmd{}, nil, []string{"ls"}, false)
	assertCode(t, exitcode.Success, code, stderr)
	if !strings.Contains(stdout, "taskdeck list [--filter") {
		t.Errorf("expected list usage, got %q", stdout)
	}

	_, stderr, code = runCommand(t, &commands.HelpCmd{}, nil, []string{"nope"}, false)
	assertCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: unknown command: nope\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, st, nil, false)

	assertCode(t, exitcode.Success, code, stderr)
	expected := "   1  [ ] * Buy milk  due Today at 11:59 PM\n" +
		"   2  [ ]   Call mom  due Tomorrow at 9:30 AM\n" +
		"------------\n" +
		"[all 2]  pending 2  completed 0  important 1  archive 0\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, newStore(), nil, false)

	assertCode(t, exitcode.Success, code, stderr)
	expected := "no tasks found\n------------\n[all 0]  pending 0  completed 0  important 0  archive 0\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, newStore(), nil, true)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestListCommand_FilterAndSearch(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, st, []string{"--filter", "important"}, true)
	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "   1  [ ] * Buy milk  due Today at 11:59 PM\n" {
		t.Errorf("unexpected important view %q", stdout)
	}

	stdout, stderr, code = runCommand(t, &commands.ListCmd{}, st, []string{"-s", "MOM"}, true)
	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "   1  [ ]   Call mom  due Tomorrow at 9:30 AM\n" {
		t.Errorf("unexpected search result %q", stdout)
	}

	stdout, stderr, code = runCommand(t, &commands.ListCmd{}, st, []string{"--search", "  mom "}, true)
	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "   1  [ ]   Call mom  due Tomorrow at 9:30 AM\n" {
		t.Errorf("expected padded search to be trimmed, got %q", stdout)
	}
}

func TestListCommand_BadFilter(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.ListCmd{}, newStore(), []string{"--filter", "someday"}, false)

	assertCode(t, exitcode.UserError, code, stderr)
	expected := "error: invalid filter: unknown view \"someday\"\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestListCommand_UnexpectedArgument(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.ListCmd{}, newStore(), []string{"extra"}, false)

	assertCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: unexpected argument: extra\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_JSON(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, st, []string{"--json", "--filter", "pending"}, false)
	assertCode(t, exitcode.Success, code, stderr)

	var res view.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("invalid json %q: %v", stdout, err)
	}
	if res.Mode != view.Pending || len(res.Tasks) != 2 || res.Counts.Important != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestListCommand_StoreError(t *testing.T) {
	st := newStore()
	st.SubscribeErr = errors.New("connection refused")

	_, stderr, code := runCommand(t, &commands.ListCmd{}, st, nil, false)

	assertCode(t, exitcode.BackendError, code, stderr)
	if !strings.HasPrefix(stderr, "error: subscribe task alice") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestAddCommand_Success(t *testing.T) {
	st := newStore()

	args := []string{"--date", "today", "-i", "Buy", "milk", "--", "two", "liters"}
	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, st, args, false)

	assertCode(t, exitcode.Success, code, stderr)
	snap := st.Snapshot(owner)
	if len(snap) != 1 {
		t.Fatalf("expected 1 task, got %d", len(snap))
	}
	got := snap[0]
	if stdout != "ok "+got.ID+"\n" {
		t.Errorf("expected ok with id, got %q", stdout)
	}
	if got.Title != "Buy milk" || got.Description != "two liters" || !got.IsImportant {
		t.Errorf("unexpected task %+v", got)
	}
	if want := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC); !got.Deadline.Equal(want) {
		t.Errorf("expected deadline %v, got %v", want, got.Deadline)
	}
	if got.Status() != task.StatusPending {
		t.Errorf("expected pending task, got %s", got.Status())
	}
}

func TestAddCommand_Done(t *testing.T) {
	st := newStore()

	args := []string{"--date", "2025-03-05", "--time", "08:15", "--desc", "already handled", "--done", "Pay", "rent"}
	_, stderr, code := runCommand(t, &commands.AddCmd{}, st, args, true)

	assertCode(t, exitcode.Success, code, stderr)
	got := st.Snapshot(owner)[0]
	if got.Status() != task.StatusCompleted || !got.CompletedAt.Equal(now) {
		t.Errorf("expected task completed at %v, got %+v", now, got)
	}
	if got.Description != "already handled" {
		t.Errorf("expected description from --desc, got %q", got.Description)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, newStore(), []string{"-d", "tomorrow", "x", "--", "y"}, true)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no title", []string{"--date", "today"}, "error: title required\n"},
		{"no description", []string{"--date", "today", "Buy", "milk"}, "error: invalid description: required\n"},
		{"no date", []string{"Buy", "--", "milk"}, "error: invalid date: required\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore()
			_, stderr, code := runCommand(t, &commands.AddCmd{}, st, tt.args, false)
			assertCode(t, exitcode.UserError, code, stderr)
			if stderr != tt.wantErr {
				t.Errorf("expected %q, got %q", tt.wantErr, stderr)
			}
			if len(st.Snapshot(owner)) != 0 {
				t.Error("expected nothing stored")
			}
		})
	}
}

func TestEditCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)

	args := []string{"--title", "Buy oat milk", "--time", "18:00", "1"}
	stdout, stderr, code := runCommand(t, &commands.EditCmd{}, st, args, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	got, _ := st.Get("t1")
	if got.Title != "Buy oat milk" {
		t.Errorf("expected new title, got %q", got.Title)
	}
	if want := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC); !got.Deadline.Equal(want) {
		t.Errorf("expected deadline %v, got %v", want, got.Deadline)
	}
}

func TestEditCommand_NothingToChange(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.EditCmd{}, st, []string{"--important=true", "t1"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "nothing to change\n" {
		t.Errorf("expected nothing to change, got %q", stdout)
	}
	if len(st.Updates()) != 0 {
		t.Errorf("expected no store writes, got %d", len(st.Updates()))
	}
}

func TestEditCommand_SingleRef(t *testing.T) {
	st := newStore()
	seedTwo(st)

	_, stderr, code := runCommand(t, &commands.EditCmd{}, st, []string{"--title", "x", "1", "2"}, false)

	assertCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: edit takes a single task reference\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDoneCommand_Success(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, st, []string{"1"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	expected := "Buy milk: archives at Mar 2, 2:00 PM\nok\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	got, _ := st.Get("t1")
	if got.Status() != task.StatusCompleted || !got.CompletedAt.Equal(now) {
		t.Errorf("expected task completed at %v, got %+v", now, got)
	}
}

func TestDoneCommand_AlreadyCompleted(t *testing.T) {
	st := newStore()
	seedTwo(st)
	runCommand(t, &commands.DoneCmd{}, st, []string{"t2"}, true)

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, st, []string{"t2"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected only ok, got %q", stdout)
	}
	if len(st.Updates()) != 1 {
		t.Errorf("expected a single write, got %d", len(st.Updates()))
	}
}

func TestDoneCommand_Archived(t *testing.T) {
	st := newStore()
	old := seed(st, "t9", "Old", 72*time.Hour, now.Add(-48*time.Hour))
	st.Seed(old.WithState(task.State{
		IsCompleted: true, CompletedAt: task.TimePtr(now.Add(-48 * time.Hour)),
		IsArchived: true, ArchivedAt: task.TimePtr(now.Add(-24 * time.Hour)),
	}))

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, st, []string{"t9"}, false)

	assertCode(t, exitcode.UserError, code, stderr)
	if !strings.Contains(stderr, "invalid transition") {
		t.Errorf("expected invalid transition, got %q", stderr)
	}
}

func TestDoneCommand_RefErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no ref", nil, "error: task reference required\n"},
		{"out of range", []string{"3"}, "error: task number out of range: 3\n"},
		{"unknown id", []string{"zz"}, "error: task not found: zz\n"},
		{"invalid", []string{"a/b"}, "error: invalid task reference: a/b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore()
			seedTwo(st)
			stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, st, tt.args, false)
			assertCode(t, exitcode.UserError, code, stderr)
			if stderr != tt.wantErr {
				t.Errorf("expected %q, got %q", tt.wantErr, stderr)
			}
			if stdout != "" {
				t.Errorf("expected no stdout, got %q", stdout)
			}
		})
	}
}

func TestDoneCommand_StoreError(t *testing.T) {
	st := newStore()
	seedTwo(st)
	st.UpdateErr = errors.New("write failed")

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, st, []string{"1"}, false)

	assertCode(t, exitcode.BackendError, code, stderr)
	if stderr != "error: update task t1: write failed\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestUndoCommand_FromArchive(t *testing.T) {
	st := newStore()
	old := seed(st, "arch-1", "Old", 72*time.Hour, now.Add(-48*time.Hour))
	st.Seed(old.WithState(task.State{
		IsCompleted: true, CompletedAt: task.TimePtr(now.Add(-48 * time.Hour)),
		IsArchived: true, ArchivedAt: task.TimePtr(now.Add(-24 * time.Hour)),
	}))

	stdout, stderr, code := runCommand(t, &commands.UndoCmd{}, st, []string{"arch"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	got, _ := st.Get("arch-1")
	if got.Status() != task.StatusPending || got.CompletedAt != nil || got.ArchivedAt != nil {
		t.Errorf("expected a clean pending task, got %+v", got)
	}
}

func TestUndoCommand_PendingIsNoop(t *testing.T) {
	st := newStore()
	seedTwo(st)

	_, stderr, code := runCommand(t, &commands.UndoCmd{}, st, []string{"1", "2"}, true)

	assertCode(t, exitcode.Success, code, stderr)
	if len(st.Updates()) != 0 {
		t.Errorf("expected no writes, got %d", len(st.Updates()))
	}
}

func TestStarCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)

	_, stderr, code := runCommand(t, &commands.StarCmd{}, st, []string{"1", "2"}, true)

	assertCode(t, exitcode.Success, code, stderr)
	milk, _ := st.Get("t1")
	mom, _ := st.Get("t2")
	if milk.IsImportant || !mom.IsImportant {
		t.Errorf("expected importance toggled, got t1=%v t2=%v", milk.IsImportant, mom.IsImportant)
	}
}

func TestRmCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, st, []string{"2"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if _, ok := st.Get("t2"); ok {
		t.Error("expected t2 deleted")
	}
	if _, ok := st.Get("t1"); !ok {
		t.Error("expected t1 kept")
	}
}

func TestShowCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)

	stdout, stderr, code := runCommand(t, &commands.ShowCmd{}, st, []string{"t1"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	for _, want := range []string{
		fmt.Sprintf("%-12s %s\n", "ID:", "t1"),
		fmt.Sprintf("%-12s %s\n", "Title:", "Buy milk"),
		fmt.Sprintf("%-12s %s\n", "Status:", "pending"),
		fmt.Sprintf("%-12s %s\n", "Important:", "yes"),
		"------------\nBuy milk notes\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output %q", want, stdout)
		}
	}
}

func TestStatsCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)
	runCommand(t, &commands.DoneCmd{}, st, []string{"t2"}, true)

	stdout, stderr, code := runCommand(t, &commands.StatsCmd{}, st, nil, false)

	assertCode(t, exitcode.Success, code, stderr)
	expected := "total        2\n" +
		"completed    1   50%\n" +
		"pending      1   50%\n" +
		"important    1   50%\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestSweepCommand(t *testing.T) {
	st := newStore()
	seedTwo(st)
	due := seed(st, "t3", "Done long ago", 72*time.Hour, now.Add(-48*time.Hour))
	st.Seed(due.WithState(task.State{IsCompleted: true, CompletedAt: task.TimePtr(now.Add(-25 * time.Hour))}))
	fresh := seed(st, "t4", "Done just now", 3*time.Hour, now)
	st.Seed(fresh.WithState(task.State{IsCompleted: true, CompletedAt: task.TimePtr(now.Add(-time.Hour))}))

	stdout, stderr, code := runCommand(t, &commands.SweepCmd{}, st, nil, false)

	assertCode(t, exitcode.Success, code, stderr)
	if stdout != "archived 1\n" {
		t.Errorf("expected one archived, got %q", stdout)
	}
	got, _ := st.Get("t3")
	if got.Status() != task.StatusArchived || !got.ArchivedAt.Equal(now) {
		t.Errorf("expected t3 archived at %v, got %+v", now, got)
	}
	if got, _ := st.Get("t4"); got.Status() != task.StatusCompleted {
		t.Errorf("expected t4 still completed, got %s", got.Status())
	}
}

func TestWatchCommand_Once(t *testing.T) {
	st := newStore()
	seedTwo(st)

	cmd := &commands.WatchCmd{}
	stdout, stderr, code := runCommand(t, cmd, st, []string{"--once", "--filter", "pending", "--search", "mom"}, false)

	assertCode(t, exitcode.Success, code, stderr)
	expected := "------------\n" +
		"   1  [ ]   Call mom  due Tomorrow at 9:30 AM\n" +
		"all 2  [pending 2]  completed 0  important 1  archive 0\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if st.Subscribers() != 0 {
		t.Errorf("expected subscription closed, got %d open", st.Subscribers())
	}
}

func TestTokenCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.TokenCmd{}, nil, []string{"--email", "alice@example.com"}, false)
	assertCode(t, exitcode.Success, code, stderr)

	auth, err := identity.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := auth.Verify(strings.TrimSpace(stdout))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if id.OwnerID != owner || id.Email != "alice@example.com" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestTokenCommand_NoSecret(t *testing.T) {
	cmd := &commands.TokenCmd{}
	cfg := newConfig(t, false)
	cfg.JWTSecret = ""

	var outBuf, errBuf bytes.Buffer
	code := cmd.Run(context.Background(), cfg, nil, nil, &outBuf, &errBuf)

	assertCode(t, exitcode.AuthError, code, errBuf.String())
	if outBuf.String() != "" {
		t.Errorf("expected no stdout, got %q", outBuf.String())
	}
}

// lockedBuffer is a bytes.Buffer safe for the server's logging goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeCommand_WaitsForShutdown(t *testing.T) {
	st := newStore()
	var logBuf lockedBuffer
	log := logger.New(config.Logger{Level: slog.LevelInfo, Plaintext: true}, &logBuf)
	ctx, cancel := context.WithCancel(logger.Context(context.Background(), log))
	defer cancel()

	cmd := &commands.ServeCmd{}
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	if err := fs.Parse([]string{"--addr", "127.0.0.1:0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	done := make(chan int, 1)
	go func() {
		done <- cmd.Run(ctx, newConfig(t, false), st, nil, io.Discard, io.Discard)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for st.Subscribers() == 0 || !strings.Contains(logBuf.String(), "http server listening") {
		if time.Now().After(deadline) {
			t.Fatal("server never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		if code != exitcode.Success {
			t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	logs := logBuf.String()
	if !strings.Contains(logs, "http server stopped") || !strings.Contains(logs, "server exited") {
		t.Errorf("expected shutdown to finish before returning, got logs %q", logs)
	}
	if n := st.Subscribers(); n != 0 {
		t.Errorf("expected schedulers to be stopped, got %d subscribers", n)
	}
}
