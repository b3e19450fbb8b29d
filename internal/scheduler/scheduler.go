// Package scheduler archives completed tasks once their delay has elapsed.
//
// Two independent triggers drive archival: a periodic sweep over the latest
// snapshot, and a one-shot timer per completed task armed at its archive
// time. Both re-check eligibility through the lifecycle engine before any
// write, so a stale trigger never archives anything.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"taskdeck/internal/lifecycle"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

const (
	defaultSweepInterval = time.Minute
	defaultWriteTimeout  = 10 * time.Second
)

// Config holds scheduler settings.
type Config struct {
	SweepInterval time.Duration
	WriteTimeout  time.Duration
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a timer that calls f after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Observer receives each snapshot after the scheduler has evaluated it.
type Observer func(tasks []task.Task)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithAfterFunc replaces time.AfterFunc for per-task timers.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) { s.afterFunc = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

type armed struct {
	timer       Timer
	gen         uint64
	completedAt time.Time
}

// Scheduler runs archival for a single owner.
type Scheduler struct {
	store     store.Store
	lc        *lifecycle.Engine
	cfg       Config
	now       func() time.Time
	afterFunc AfterFunc
	log       *slog.Logger

	mu        sync.Mutex
	ready     bool
	snapshot  []task.Task
	timers    map[string]*armed
	gen       uint64
	inflight  map[string]time.Time // task id -> CompletedAt being archived
	observers map[int]Observer
	nextObs   int
	stopped   bool

	wg   sync.WaitGroup
	done chan struct{}
	err  error
}

// New creates a scheduler. Zero config values get defaults.
func New(s store.Store, lc *lifecycle.Engine, cfg Config, opts ...Option) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	sc := &Scheduler{
		store: s,
		lc:    lc,
		cfg:   cfg,
		now:   time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		log:       slog.Default(),
		timers:    make(map[string]*armed),
		inflight:  make(map[string]time.Time),
		observers: make(map[int]Observer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Run subscribes to the owner's feed and archives eligible tasks until ctx
// is done. Feed errors are logged and the subscription is kept. Run may be
// called once per Scheduler.
func (s *Scheduler) Run(ctx context.Context, ownerID string) (err error) {
	s.log = s.log.With("owner", ownerID)
	defer func() {
		s.err = err
		close(s.done)
	}()

	unsub, err := s.store.Subscribe(ctx, ownerID,
		func(tasks []task.Task) { s.handleSnapshot(ctx, tasks) },
		func(err error) { s.log.Error("task feed failed", "error", err) },
	)
	if err != nil {
		s.stopTimers()
		return err
	}
	s.log.Debug("scheduler started", "sweep_interval", s.cfg.SweepInterval, "delay", s.lc.Delay())

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			unsub()
			s.stopTimers()
			s.wg.Wait()
			s.log.Debug("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx, s.now())
		}
	}
}

// OnSnapshot registers fn for every evaluated snapshot. If a snapshot has
// already been received, fn is called with it right away. The returned
// function removes the observer.
func (s *Scheduler) OnSnapshot(fn Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	ready, snap := s.ready, cloneAll(s.snapshot)
	s.mu.Unlock()

	if ready {
		fn(snap)
	}
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the latest snapshot seen by the scheduler.
func (s *Scheduler) Snapshot() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.snapshot)
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the error Run returned. It is only meaningful once Done is
// closed.
func (s *Scheduler) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until all in-flight archive writes have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Sweep evaluates every completed task of the latest snapshot and starts an
// archive write for each eligible one. It returns the ids of the tasks
// dispatched. Write failures are logged.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	snap := cloneAll(s.snapshot)
	s.mu.Unlock()

	var ids []string
	for _, t := range snap {
		if !t.IsCompleted || t.IsArchived || !s.lc.Eligible(t, now) {
			continue
		}
		if s.dispatch(ctx, t, now) {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) > 0 {
		s.log.Info("sweep archived tasks", "count", len(ids))
	}
	return ids
}

// SweepOwner fetches the owner's tasks once and archives the eligible ones
// synchronously. It returns the ids archived.
func (s *Scheduler) SweepOwner(ctx context.Context, ownerID string) ([]string, error) {
	tasks, err := store.Fetch(ctx, s.store, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var ids []string
	for _, t := range tasks {
		if !t.IsCompleted || t.IsArchived || !s.lc.Eligible(t, now) {
			continue
		}
		if err := s.archive(ctx, t, now); err != nil {
			return ids, err
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (s *Scheduler) handleSnapshot(ctx context.Context, tasks []task.Task) {
	now := s.now()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.ready = true
	s.snapshot = cloneAll(tasks)
	s.reconcileLocked(ctx, now)
	observers := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextObs; id++ {
		if fn, ok := s.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	s.Sweep(ctx, now)

	for _, fn := range observers {
		fn(cloneAll(tasks))
	}
}

// reconcileLocked arms, re-arms and disarms per-task timers so that exactly
// the completed, unarchived tasks of the snapshot have one. It also drops
// in-flight entries the snapshot has caught up with.
func (s *Scheduler) reconcileLocked(ctx context.Context, now time.Time) {
	seen := make(map[string]bool, len(s.snapshot))
	for _, t := range s.snapshot {
		seen[t.ID] = true

		if c, ok := s.inflight[t.ID]; ok && (t.CompletedAt == nil || !t.CompletedAt.Equal(c) || t.IsArchived) {
			delete(s.inflight, t.ID)
		}

		at, ok := s.lc.ArchiveAt(t)
		cur := s.timers[t.ID]
		if !ok {
			if cur != nil {
				cur.timer.Stop()
				delete(s.timers, t.ID)
			}
			continue
		}
		if cur != nil && cur.completedAt.Equal(*t.CompletedAt) {
			continue
		}
		if cur != nil {
			cur.timer.Stop()
		}

		s.gen++
		gen, id := s.gen, t.ID
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		s.timers[id] = &armed{
			timer:       s.afterFunc(d, func() { s.fire(ctx, id, gen) }),
			gen:         gen,
			completedAt: *t.CompletedAt,
		}
	}

	for id, a := range s.timers {
		if !seen[id] {
			a.timer.Stop()
			delete(s.timers, id)
		}
	}
	for id := range s.inflight {
		if !seen[id] {
			delete(s.inflight, id)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, id string, gen uint64) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	a, ok := s.timers[id]
	if !ok || a.gen != gen {
		s.mu.Unlock()
		s.log.Debug("stale archive timer", "task", id, "generation", gen)
		return
	}
	delete(s.timers, id)
	t, found := store.Find(s.snapshot, id)
	s.mu.Unlock()

	if !found {
		s.log.Warn("archive timer fired for missing task", "task", id)
		return
	}
	s.dispatch(ctx, t.Clone(), now)
}

// dispatch re-validates t and starts the archive write on its own goroutine.
func (s *Scheduler) dispatch(ctx context.Context, t task.Task, now time.Time) bool {
	if _, err := s.lc.Archive(t, now); err != nil {
		s.log.Warn("skipping archival", "task", t.ID, "error", err)
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	if _, busy := s.inflight[t.ID]; busy {
		s.mu.Unlock()
		return false
	}
	s.inflight[t.ID] = *t.CompletedAt
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.archive(ctx, t, now); err != nil {
			s.log.Error("archive failed", "task", t.ID, "error", err)
			s.mu.Lock()
			delete(s.inflight, t.ID)
			s.mu.Unlock()
		}
	}()
	return true
}

func (s *Scheduler) archive(ctx context.Context, t task.Task, now time.Time) error {
	archived, err := s.lc.Archive(t, now)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.store.Update(ctx, t.ID, task.StatePatch(archived, now)); err != nil {
		return task.Op("update", t.ID, err)
	}
	s.log.Debug("task archived", "task", t.ID, "completed_at", t.CompletedAt)
	return nil
}

// stopTimers disarms every timer and refuses further archive writes, so
// wg.Wait in Run cannot race a late Add.
func (s *Scheduler) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, id)
	}
}

func cloneAll(tasks []task.Task) []task.Task {
	if tasks == nil {
		return nil
	}
	out := make([]task.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
