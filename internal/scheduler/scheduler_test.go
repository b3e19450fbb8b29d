package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/lifecycle"
	"taskdeck/internal/scheduler"
	"taskdeck/internal/task"
	"taskdeck/internal/testutil"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeTimer struct {
	parent  *fakeTimers
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu  sync.Mutex
	all []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{parent: ft, d: d, f: f}
	ft.all = append(ft.all, t)
	return t
}

func (ft *fakeTimers) len() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.all)
}

func (ft *fakeTimers) at(i int) (time.Duration, bool, func()) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := ft.all[i]
	return t.d, t.stopped, t.f
}

type harness struct {
	fs     *testutil.FakeStore
	clock  *fakeClock
	timers *fakeTimers
	sched  *scheduler.Scheduler
	snaps  chan []task.Task
	ctx    context.Context
}

func start(t *testing.T, delay time.Duration, seed ...task.Task) *harness {
	t.Helper()
	h := &harness{
		fs:     testutil.NewFakeStore(),
		clock:  &fakeClock{now: t0},
		timers: &fakeTimers{},
		snaps:  make(chan []task.Task, 64),
	}
	for _, tk := range seed {
		h.fs.Seed(tk)
	}
	h.sched = scheduler.New(h.fs, lifecycle.New(delay),
		scheduler.Config{SweepInterval: time.Hour},
		scheduler.WithClock(h.clock.Now),
		scheduler.WithAfterFunc(h.timers.AfterFunc),
	)
	h.sched.OnSnapshot(func(tasks []task.Task) { h.snaps <- tasks })

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx, "me") }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	h.next(t)
	h.sched.Wait()
	return h
}

func (h *harness) next(t *testing.T) []task.Task {
	t.Helper()
	select {
	case s := <-h.snaps:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func (h *harness) archivePatches() int {
	n := 0
	for _, u := range h.fs.Updates() {
		if u.Patch.State != nil && u.Patch.State.IsArchived {
			n++
		}
	}
	return n
}

func completed(id string, at time.Time) task.Task {
	return task.Task{
		ID: id, OwnerID: "me", Title: id, Description: id,
		IsCompleted: true, CompletedAt: task.TimePtr(at),
		CreatedAt: task.TimePtr(t0.Add(-time.Hour)),
	}
}

func pending(id string) task.Task {
	return task.Task{ID: id, OwnerID: "me", Title: id, Description: id, CreatedAt: task.TimePtr(t0.Add(-time.Hour))}
}

// With a 10s delay, a task completed at t0 is left alone at +5s and archived at +11s.
func TestSweepArchivesAfterDelay(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))

	h.clock.Set(t0.Add(5 * time.Second))
	assert.Empty(t, h.sched.Sweep(h.ctx, h.clock.Now()))
	h.sched.Wait()
	got, _ := h.fs.Get("a")
	assert.False(t, got.IsArchived)

	h.clock.Set(t0.Add(11 * time.Second))
	assert.Equal(t, []string{"a"}, h.sched.Sweep(h.ctx, h.clock.Now()))
	h.sched.Wait()

	got, _ = h.fs.Get("a")
	assert.True(t, got.IsArchived)
	require.NotNil(t, got.ArchivedAt)
	assert.Equal(t, t0.Add(11*time.Second), *got.ArchivedAt)
	assert.Equal(t, t0, *got.CompletedAt)
	assert.Equal(t, 1, h.archivePatches())
}

// Reopening a task before its delay runs out keeps it out of the next sweep.
func TestSweepSkipsRevertedTask(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))

	h.clock.Set(t0.Add(8 * time.Second))
	reverted := task.StatePatch(lifecycle.New(time.Second).MarkPending(completed("a", t0)), h.clock.Now())
	require.NoError(t, h.fs.Update(context.Background(), "a", reverted))
	h.next(t)

	h.clock.Set(t0.Add(11 * time.Second))
	assert.Empty(t, h.sched.Sweep(h.ctx, h.clock.Now()))
	h.sched.Wait()

	got, _ := h.fs.Get("a")
	assert.False(t, got.IsArchived)
	assert.False(t, got.IsCompleted)
	assert.Zero(t, h.archivePatches())
}

func TestInitialSnapshotArchivesOverdueTasks(t *testing.T) {
	h := start(t, 10*time.Second, completed("old", t0.Add(-time.Minute)), pending("p"))

	got, _ := h.fs.Get("old")
	assert.True(t, got.IsArchived)
	got, _ = h.fs.Get("p")
	assert.False(t, got.IsArchived)
}

func TestTimerArmedAtCompletionPlusDelay(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0.Add(-4*time.Second)), pending("p"))

	require.Equal(t, 1, h.timers.len())
	d, stopped, fire := h.timers.at(0)
	assert.Equal(t, 6*time.Second, d)
	assert.False(t, stopped)

	h.clock.Set(t0.Add(6 * time.Second))
	fire()
	h.sched.Wait()

	got, _ := h.fs.Get("a")
	assert.True(t, got.IsArchived)
	assert.Equal(t, 1, h.archivePatches())
}

func TestTimerDisarmedOnRevert(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))
	require.Equal(t, 1, h.timers.len())

	require.NoError(t, h.fs.Update(context.Background(), "a", task.StatePatch(pending("a"), t0)))
	h.next(t)

	_, stopped, fire := h.timers.at(0)
	assert.True(t, stopped)

	// a timer that fires after being disarmed must not archive
	h.clock.Set(t0.Add(time.Minute))
	fire()
	h.sched.Wait()

	got, _ := h.fs.Get("a")
	assert.False(t, got.IsArchived)
	assert.Zero(t, h.archivePatches())
}

func TestTimerRearmedWhenCompletionChanges(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))
	require.Equal(t, 1, h.timers.len())

	h.clock.Set(t0.Add(3 * time.Second))
	recompleted := completed("a", t0.Add(3*time.Second))
	require.NoError(t, h.fs.Update(context.Background(), "a", task.StatePatch(recompleted, h.clock.Now())))
	h.next(t)

	require.Equal(t, 2, h.timers.len())
	_, stopped, staleFire := h.timers.at(0)
	assert.True(t, stopped)
	d, stopped, _ := h.timers.at(1)
	assert.False(t, stopped)
	assert.Equal(t, 10*time.Second, d)

	// the old generation fires at T+10s: too early for the new completion
	h.clock.Set(t0.Add(10 * time.Second))
	staleFire()
	h.sched.Wait()
	got, _ := h.fs.Get("a")
	assert.False(t, got.IsArchived)
}

func TestTimerDisarmedOnDelete(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))

	require.NoError(t, h.fs.Delete(context.Background(), "a"))
	h.next(t)

	_, stopped, fire := h.timers.at(0)
	assert.True(t, stopped)
	h.clock.Set(t0.Add(time.Minute))
	fire()
	h.sched.Wait()
	assert.Empty(t, h.fs.Updates())
}

func TestSweepAndTimerArchiveOnce(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))
	_, _, fire := h.timers.at(0)

	h.clock.Set(t0.Add(11 * time.Second))
	h.sched.Sweep(h.ctx, h.clock.Now())
	h.sched.Wait()
	fire()
	h.sched.Wait()
	h.sched.Sweep(h.ctx, h.clock.Now())
	h.sched.Wait()

	assert.Equal(t, 1, h.archivePatches())
}

func TestSweepRetriesAfterWriteFailure(t *testing.T) {
	h := start(t, 10*time.Second, completed("a", t0))
	h.clock.Set(t0.Add(11 * time.Second))

	h.fs.UpdateErr = errors.New("unavailable")
	assert.Equal(t, []string{"a"}, h.sched.Sweep(h.ctx, h.clock.Now()))
	h.sched.Wait()
	got, _ := h.fs.Get("a")
	assert.False(t, got.IsArchived)

	h.fs.UpdateErr = nil
	assert.Equal(t, []string{"a"}, h.sched.Sweep(h.ctx, h.clock.Now()))
	h.sched.Wait()
	got, _ = h.fs.Get("a")
	assert.True(t, got.IsArchived)
}

func TestObserversReceiveSnapshots(t *testing.T) {
	h := start(t, time.Hour, pending("a"))

	var got []task.Task
	var mu sync.Mutex
	remove := h.sched.OnSnapshot(func(tasks []task.Task) {
		mu.Lock()
		got = tasks
		mu.Unlock()
	})
	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()

	_, err := h.fs.Create(context.Background(), pending("b"))
	require.NoError(t, err)
	h.next(t)
	mu.Lock()
	assert.Len(t, got, 2)
	mu.Unlock()

	remove()
	_, err = h.fs.Create(context.Background(), pending("c"))
	require.NoError(t, err)
	h.next(t)
	mu.Lock()
	assert.Len(t, got, 2)
	mu.Unlock()
	assert.Len(t, h.sched.Snapshot(), 3)
}

func TestFeedErrorKeepsSubscription(t *testing.T) {
	h := start(t, time.Minute, pending("a"))

	h.fs.Fail("me", errors.New("stream reset"))
	h.fs.Seed(completed("b", t0.Add(-time.Hour)))
	h.fs.Publish("me")

	snap := h.next(t)
	assert.Len(t, snap, 2)
	h.sched.Wait()
	got, _ := h.fs.Get("b")
	assert.True(t, got.IsArchived)
}

func TestRunSubscribeError(t *testing.T) {
	fs := testutil.NewFakeStore()
	fs.SubscribeErr = errors.New("denied")
	s := scheduler.New(fs, lifecycle.New(time.Second), scheduler.Config{})

	err := s.Run(context.Background(), "me")
	assert.True(t, task.IsOperation(err))
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Run returned")
	}
	assert.Equal(t, err, s.Err())
}

func TestNoArchiveAfterStop(t *testing.T) {
	fs := testutil.NewFakeStore()
	fs.Seed(completed("a", t0))
	clock := &fakeClock{now: t0}
	timers := &fakeTimers{}
	s := scheduler.New(fs, lifecycle.New(10*time.Second), scheduler.Config{SweepInterval: time.Hour},
		scheduler.WithClock(clock.Now),
		scheduler.WithAfterFunc(timers.AfterFunc),
	)
	assert.NoError(t, s.Err())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "me") }()
	require.Eventually(t, func() bool { return timers.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, _, fire := timers.at(0)

	cancel()
	require.NoError(t, <-done)
	<-s.Done()
	assert.NoError(t, s.Err())

	clock.Set(t0.Add(time.Minute))
	fire()
	assert.Empty(t, s.Sweep(context.Background(), clock.Now()))
	fs.Publish("me")
	s.Wait()
	assert.Empty(t, fs.Updates())
}

func TestSweepOwner(t *testing.T) {
	fs := testutil.NewFakeStore()
	fs.Seed(completed("due", t0.Add(-time.Hour)))
	fs.Seed(completed("fresh", t0))
	fs.Seed(pending("p"))

	s := scheduler.New(fs, lifecycle.New(time.Minute), scheduler.Config{},
		scheduler.WithClock(func() time.Time { return t0 }))
	ids, err := s.SweepOwner(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, ids)
	assert.Zero(t, fs.Subscribers())
}

func TestPool(t *testing.T) {
	fs := testutil.NewFakeStore()
	p := scheduler.NewPool(context.Background(), fs, lifecycle.New(time.Hour), scheduler.Config{SweepInterval: time.Hour})

	a := p.Get("alice")
	assert.Same(t, a, p.Get("alice"))
	p.Get("bob")
	assert.Equal(t, []string{"alice", "bob"}, p.Owners())

	assert.Eventually(t, func() bool { return fs.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Close())
	assert.Zero(t, fs.Subscribers())
	assert.Nil(t, p.Get("carol"))
}
