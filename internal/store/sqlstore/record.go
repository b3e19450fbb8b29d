package sqlstore

import (
	"time"

	"taskdeck/internal/task"
)

// taskRecord is the row layout of a task document.
type taskRecord struct {
	ID             string     `gorm:"primarykey;size:36"`
	OwnerID        string     `gorm:"size:128;not null;index"`
	Title          string     `gorm:"not null"`
	Description    string     `gorm:"not null"`
	Deadline       *time.Time `gorm:"index"`
	IsImportant    bool       `gorm:"not null;default:false"`
	IsCompleted    bool       `gorm:"not null;default:false"`
	CompletedAt    *time.Time
	IsArchived     bool `gorm:"not null;default:false"`
	ArchivedAt     *time.Time
	AttachmentName string `gorm:"size:255"`
	AttachmentType string `gorm:"size:127"`
	AttachmentSize int64
	AttachmentData []byte
	CreatedAt      *time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime:false"`
}

// TableName returns the table name for taskRecord.
func (taskRecord) TableName() string {
	return "tasks"
}

func toRecord(t task.Task) taskRecord {
	r := taskRecord{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    t.Deadline,
		IsImportant: t.IsImportant,
		IsCompleted: t.IsCompleted,
		CompletedAt: t.CompletedAt,
		IsArchived:  t.IsArchived,
		ArchivedAt:  t.ArchivedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if a := t.Attachment; a != nil {
		r.AttachmentName = a.Name
		r.AttachmentType = a.Type
		r.AttachmentSize = a.Size
		r.AttachmentData = a.Data
	}
	return r
}

func (r taskRecord) toTask() task.Task {
	t := task.Task{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Deadline:    r.Deadline,
		IsImportant: r.IsImportant,
		IsCompleted: r.IsCompleted,
		CompletedAt: r.CompletedAt,
		IsArchived:  r.IsArchived,
		ArchivedAt:  r.ArchivedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.AttachmentName != "" {
		t.Attachment = &task.Attachment{
			Name: r.AttachmentName,
			Type: r.AttachmentType,
			Size: r.AttachmentSize,
			Data: r.AttachmentData,
		}
	}
	return t
}

// patchColumns maps a patch onto column updates. A map is used so that
// false and nil values are written too.
func patchColumns(p task.Patch) map[string]any {
	cols := map[string]any{}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Deadline != nil {
		cols["deadline"] = *p.Deadline
	}
	if p.IsImportant != nil {
		cols["is_important"] = *p.IsImportant
	}
	if a := p.Attachment; a != nil {
		cols["attachment_name"] = a.Name
		cols["attachment_type"] = a.Type
		cols["attachment_size"] = a.Size
		cols["attachment_data"] = a.Data
	}
	if s := p.State; s != nil {
		cols["is_completed"] = s.IsCompleted
		cols["completed_at"] = s.CompletedAt
		cols["is_archived"] = s.IsArchived
		cols["archived_at"] = s.ArchivedAt
	}
	if !p.UpdatedAt.IsZero() {
		cols["updated_at"] = p.UpdatedAt
	}
	return cols
}
