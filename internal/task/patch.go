package task

import (
	"bytes"
	"time"
)

// Patch is a partial document update sent to a store. Nil fields are left
// untouched. State, when present, replaces all four lifecycle fields at once.
type Patch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	IsImportant *bool       `json:"isImportant,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	State       *State      `json:"state,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// IsEmpty reports whether p changes nothing besides the update timestamp.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Deadline == nil &&
		p.IsImportant == nil && p.Attachment == nil && p.State == nil
}

// Apply returns t with p applied. Identity fields are never touched.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Deadline != nil {
		t.Deadline = cloneTime(p.Deadline)
	}
	if p.IsImportant != nil {
		t.IsImportant = *p.IsImportant
	}
	if p.Attachment != nil {
		a := *p.Attachment
		t.Attachment = &a
	}
	if p.State != nil {
		t = t.WithState(*p.State)
	}
	if !p.UpdatedAt.IsZero() {
		t.UpdatedAt = p.UpdatedAt
	}
	return t
}

// StatePatch returns a patch that writes only the lifecycle fields of t.
func StatePatch(t Task, now time.Time) Patch {
	s := t.State()
	return Patch{State: &s, UpdatedAt: now}
}

// Diff returns the patch that turns before into after.
func Diff(before, after Task) Patch {
	p := Patch{UpdatedAt: after.UpdatedAt}
	if before.Title != after.Title {
		p.Title = &after.Title
	}
	if before.Description != after.Description {
		p.Description = &after.Description
	}
	if !sameTime(before.Deadline, after.Deadline) && after.Deadline != nil {
		p.Deadline = cloneTime(after.Deadline)
	}
	if before.IsImportant != after.IsImportant {
		v := after.IsImportant
		p.IsImportant = &v
	}
	if after.Attachment != nil && !sameAttachment(before.Attachment, after.Attachment) {
		a := *after.Attachment
		p.Attachment = &a
	}
	if !sameState(before.State(), after.State()) {
		s := after.State()
		p.State = &s
	}
	return p
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameAttachment(a, b *Attachment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.Type == b.Type && a.Size == b.Size && bytes.Equal(a.Data, b.Data)
}

func sameState(a, b State) bool {
	return a.IsCompleted == b.IsCompleted && a.IsArchived == b.IsArchived &&
		sameTime(a.CompletedAt, b.CompletedAt) && sameTime(a.ArchivedAt, b.ArchivedAt)
}
