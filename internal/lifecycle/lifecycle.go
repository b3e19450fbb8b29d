// Package lifecycle implements the task state machine:
//
//	pending ──complete──▶ completed ──archive (after delay)──▶ archived
//	   ▲                      │                                   │
//	   └──────── reopen ──────┴──────────── reopen ───────────────┘
//
// Every transition returns a new task value; nothing here touches a store.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"taskdeck/internal/task"
)

var (
	// ErrInvalidTransition is returned when a transition is not allowed from
	// the task's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotCompleted means an archive was attempted on a task that is not completed.
	ErrNotCompleted = errors.New("task is not completed")

	// ErrAlreadyArchived means an archive was attempted on an archived task.
	ErrAlreadyArchived = errors.New("task is already archived")

	// ErrTooEarly means the archival delay has not yet elapsed.
	ErrTooEarly = errors.New("archival delay has not elapsed")
)

// ArchiveRequest asks the scheduler to archive a task at a given time.
type ArchiveRequest struct {
	TaskID string
	At     time.Time
}

// Engine applies lifecycle transitions. The archival delay is fixed per engine.
type Engine struct {
	delay time.Duration
}

// New returns an engine that archives completed tasks after delay.
// It panics if delay is not positive.
func New(delay time.Duration) *Engine {
	if delay <= 0 {
		panic(fmt.Sprintf("lifecycle: archival delay must be positive, got %s", delay))
	}
	return &Engine{delay: delay}
}

// Delay returns the archival delay.
func (e *Engine) Delay() time.Duration {
	return e.delay
}

// MarkCompleted completes a pending task and returns the archive request for
// it. Completing an already completed task is a no-op with a nil request.
func (e *Engine) MarkCompleted(t task.Task, now time.Time) (task.Task, *ArchiveRequest, error) {
	switch t.Status() {
	case task.StatusCompleted:
		return t, nil, nil
	case task.StatusArchived:
		return t, nil, fmt.Errorf("complete task %s: %w: task is archived", t.ID, ErrInvalidTransition)
	}
	t = t.WithState(task.State{
		IsCompleted: true,
		CompletedAt: task.TimePtr(now),
	})
	return t, &ArchiveRequest{TaskID: t.ID, At: now.Add(e.delay)}, nil
}

// MarkPending reopens a task. Completion and archive state are cleared
// together, so an archived task goes straight back to pending.
func (e *Engine) MarkPending(t task.Task) task.Task {
	return t.WithState(task.State{})
}

// SetCompleted moves t to the requested completion state.
func (e *Engine) SetCompleted(t task.Task, completed bool, now time.Time) (task.Task, error) {
	if !completed {
		return e.MarkPending(t), nil
	}
	t, _, err := e.MarkCompleted(t, now)
	return t, err
}

// Archive archives a completed task whose delay has elapsed. Any other case
// yields a *task.SchedulingInconsistency and t unchanged.
func (e *Engine) Archive(t task.Task, now time.Time) (task.Task, error) {
	if err := e.check(t, now); err != nil {
		return t, &task.SchedulingInconsistency{TaskID: t.ID, Reason: err}
	}
	s := t.State()
	s.IsArchived = true
	s.ArchivedAt = task.TimePtr(now)
	return t.WithState(s), nil
}

// Eligible reports whether t can be archived at now.
func (e *Engine) Eligible(t task.Task, now time.Time) bool {
	return e.check(t, now) == nil
}

// ArchiveAt returns when t becomes eligible for archival. The second result
// is false for tasks that are not completed or already archived.
func (e *Engine) ArchiveAt(t task.Task) (time.Time, bool) {
	if !t.IsCompleted || t.IsArchived || t.CompletedAt == nil {
		return time.Time{}, false
	}
	return t.CompletedAt.Add(e.delay), true
}

func (e *Engine) check(t task.Task, now time.Time) error {
	switch {
	case t.IsArchived:
		return ErrAlreadyArchived
	case !t.IsCompleted || t.CompletedAt == nil:
		return ErrNotCompleted
	case now.Sub(*t.CompletedAt) < e.delay:
		return fmt.Errorf("%w: %s left", ErrTooEarly, e.delay-now.Sub(*t.CompletedAt))
	}
	return nil
}
