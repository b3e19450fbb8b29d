// Package task defines the task document and the rules for building and editing it.
package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of a task. It is derived from the
// completion and archive flags and never stored on its own.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Task is a user-owned unit of work.
type Task struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"ownerId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	IsImportant bool        `json:"isImportant"`
	IsCompleted bool        `json:"isCompleted"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	IsArchived  bool        `json:"isArchived"`
	ArchivedAt  *time.Time  `json:"archivedAt,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	CreatedAt   *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// State holds the four lifecycle fields. They are always read and written
// together so that a document never mixes states.
type State struct {
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	IsArchived  bool       `json:"isArchived"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
}

// Status returns the derived lifecycle status.
func (t Task) Status() Status {
	return t.State().Status()
}

// State returns the lifecycle fields of t.
func (t Task) State() State {
	return State{
		IsCompleted: t.IsCompleted,
		CompletedAt: t.CompletedAt,
		IsArchived:  t.IsArchived,
		ArchivedAt:  t.ArchivedAt,
	}
}

// WithState returns a copy of t carrying s.
func (t Task) WithState(s State) Task {
	t.IsCompleted = s.IsCompleted
	t.CompletedAt = s.CompletedAt
	t.IsArchived = s.IsArchived
	t.ArchivedAt = s.ArchivedAt
	return t
}

// IsOverdue reports whether an open task has passed its deadline.
// Tasks without a deadline are never overdue.
func (t Task) IsOverdue(now time.Time) bool {
	if t.Deadline == nil || t.IsCompleted {
		return false
	}
	return t.Deadline.Before(now)
}

// Validate checks field presence and the lifecycle invariants.
func (t Task) Validate() error {
	if err := checkText("title", t.Title); err != nil {
		return err
	}
	if err := checkText("description", t.Description); err != nil {
		return err
	}
	if err := ValidateAttachment(t.Attachment); err != nil {
		return err
	}
	return t.State().Check()
}

// Status returns the status described by s.
func (s State) Status() Status {
	switch {
	case s.IsArchived:
		return StatusArchived
	case s.IsCompleted:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Check verifies that the completion and archive fields agree.
func (s State) Check() error {
	if s.IsArchived && !s.IsCompleted {
		return &ValidationError{Field: "isArchived", Reason: "archived task must be completed"}
	}
	if (s.CompletedAt != nil) != s.IsCompleted {
		return &ValidationError{Field: "completedAt", Reason: fmt.Sprintf("must be set iff isCompleted (isCompleted=%t)", s.IsCompleted)}
	}
	if (s.ArchivedAt != nil) != s.IsArchived {
		return &ValidationError{Field: "archivedAt", Reason: fmt.Sprintf("must be set iff isArchived (isArchived=%t)", s.IsArchived)}
	}
	return nil
}

// Clone returns a deep copy of t. Timestamps and the attachment are copied so
// that stores can hand out snapshots without sharing memory with callers.
func (t Task) Clone() Task {
	t.Deadline = cloneTime(t.Deadline)
	t.CompletedAt = cloneTime(t.CompletedAt)
	t.ArchivedAt = cloneTime(t.ArchivedAt)
	t.CreatedAt = cloneTime(t.CreatedAt)
	if t.Attachment != nil {
		a := *t.Attachment
		a.Data = append([]byte(nil), t.Attachment.Data...)
		t.Attachment = &a
	}
	return t
}

func cloneTime(tm *time.Time) *time.Time {
	if tm == nil {
		return nil
	}
	v := *tm
	return &v
}

// TimePtr returns a pointer to tm.
func TimePtr(tm time.Time) *time.Time {
	return &tm
}
