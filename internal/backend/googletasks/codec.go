package googletasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tasks "google.golang.org/api/tasks/v1"

	"taskdeck/internal/task"
)

// metaMarker separates the user's description from the metadata block in notes.
const metaMarker = "\n\n-- taskdeck --\n"

const (
	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"
)

// meta holds the task fields Google Tasks has no place for.
type meta struct {
	Owner       string             `json:"owner,omitempty"`
	Important   bool               `json:"important,omitempty"`
	Deadline    *time.Time         `json:"deadline,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	Archived    bool               `json:"archived,omitempty"`
	ArchivedAt  *time.Time         `json:"archivedAt,omitempty"`
	CreatedAt   *time.Time         `json:"createdAt,omitempty"`
	Attachment  *attachmentSummary `json:"attachment,omitempty"`
}

// attachmentSummary describes an attachment. Its bytes do not fit in notes
// and are not kept by this backend.
type attachmentSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// encode maps t onto a Google task.
func encode(t task.Task) (*tasks.Task, error) {
	m := meta{
		Owner:       t.OwnerID,
		Important:   t.IsImportant,
		Deadline:    t.Deadline,
		CompletedAt: t.CompletedAt,
		Archived:    t.IsArchived,
		ArchivedAt:  t.ArchivedAt,
		CreatedAt:   t.CreatedAt,
	}
	if a := t.Attachment; a != nil {
		m.Attachment = &attachmentSummary{Name: a.Name, Type: a.Type, Size: a.Size}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode task metadata: %w", err)
	}

	gt := &tasks.Task{
		Id:     t.ID,
		Title:  t.Title,
		Notes:  t.Description + metaMarker + string(data),
		Status: statusNeedsAction,
	}
	if t.Deadline != nil {
		gt.Due = t.Deadline.UTC().Format(time.RFC3339)
	}
	if t.IsCompleted {
		gt.Status = statusCompleted
		if t.CompletedAt != nil {
			c := t.CompletedAt.UTC().Format(time.RFC3339)
			gt.Completed = &c
		}
	} else {
		gt.NullFields = append(gt.NullFields, "Completed")
	}
	return gt, nil
}

// decode maps a Google task onto a task of owner. Tasks created outside
// taskdeck have no metadata: they get no creation time and take their
// deadline from the due date.
func decode(gt *tasks.Task, owner string) task.Task {
	desc, m := splitNotes(gt.Notes)
	t := task.Task{
		ID:          gt.Id,
		OwnerID:     owner,
		Title:       gt.Title,
		Description: desc,
		IsImportant: m.Important,
		Deadline:    m.Deadline,
		CreatedAt:   m.CreatedAt,
	}
	if m.Owner != "" {
		t.OwnerID = m.Owner
	}
	if t.Deadline == nil && gt.Due != "" {
		if d, err := time.Parse(time.RFC3339, gt.Due); err == nil {
			t.Deadline = &d
		}
	}
	if u, err := time.Parse(time.RFC3339, gt.Updated); err == nil {
		t.UpdatedAt = u
	}

	if gt.Status == statusCompleted {
		t.IsCompleted = true
		t.CompletedAt = m.CompletedAt
		if t.CompletedAt == nil && gt.Completed != nil {
			if c, err := time.Parse(time.RFC3339, *gt.Completed); err == nil {
				t.CompletedAt = &c
			}
		}
		if t.CompletedAt == nil {
			t.CompletedAt = task.TimePtr(t.UpdatedAt)
		}
		// hidden tasks were cleared from the list in another client
		if m.Archived || gt.Hidden {
			t.IsArchived = true
			t.ArchivedAt = m.ArchivedAt
			if t.ArchivedAt == nil {
				t.ArchivedAt = task.TimePtr(t.UpdatedAt)
			}
		}
	}

	if a := m.Attachment; a != nil {
		t.Attachment = &task.Attachment{Name: a.Name, Type: a.Type, Size: a.Size}
	}
	return t
}

// splitNotes separates the description from the metadata block. Notes
// without a valid block are all description.
func splitNotes(notes string) (string, meta) {
	var m meta
	i := strings.LastIndex(notes, metaMarker)
	if i < 0 {
		return notes, m
	}
	if err := json.Unmarshal([]byte(notes[i+len(metaMarker):]), &m); err != nil {
		return notes, meta{}
	}
	return notes[:i], m
}
