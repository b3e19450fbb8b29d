package task

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the accepted deadline date format.
	DateLayout = "2006-01-02"

	// TimeLayout is the accepted deadline time-of-day format.
	TimeLayout = "15:04"

	// DefaultDeadlineTime is used when a deadline date comes without a time.
	DefaultDeadlineTime = "23:59"
)

// Transitioner changes the completion state of a task. The lifecycle engine
// implements it; task construction and editing delegate to it instead of
// flipping the flags directly.
type Transitioner interface {
	SetCompleted(t Task, completed bool, now time.Time) (Task, error)
}

// Input is the raw data of the create form.
type Input struct {
	Title       string
	Description string
	Date        string // YYYY-MM-DD, required
	Time        string // HH:MM, defaults to 23:59
	Important   bool
	Completed   bool
	Attachment  *Attachment
	Location    *time.Location // nil means time.Local
}

// Edit is a partial change from the edit form. Nil fields keep their value.
type Edit struct {
	Title       *string
	Description *string
	Date        *string
	Time        *string
	Important   *bool
	Completed   *bool
	Attachment  *Attachment
	Location    *time.Location
}

// New validates in and builds a pending task for ownerID. The store assigns
// the id. A task requested as completed goes through lc like any other
// completion.
func New(ownerID string, in Input, now time.Time, lc Transitioner) (Task, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Task{}, &ValidationError{Field: "ownerId", Reason: "required"}
	}
	title, err := normalizeText("title", in.Title)
	if err != nil {
		return Task{}, err
	}
	desc, err := normalizeText("description", in.Description)
	if err != nil {
		return Task{}, err
	}
	deadline, err := ResolveDeadline(in.Date, in.Time, in.Location)
	if err != nil {
		return Task{}, err
	}
	if err := ValidateAttachment(in.Attachment); err != nil {
		return Task{}, err
	}

	t := Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: desc,
		Deadline:    &deadline,
		IsImportant: in.Important,
		Attachment:  in.Attachment,
		CreatedAt:   TimePtr(now),
		UpdatedAt:   now,
	}
	if in.Completed {
		if lc == nil {
			return Task{}, fmt.Errorf("create completed task: no lifecycle engine")
		}
		t, err = lc.SetCompleted(t, true, now)
		if err != nil {
			return Task{}, err
		}
	}
	return t, nil
}

// Update applies e to existing and returns the edited task together with the
// patch to send to the store. Id, owner and creation time are preserved.
// Nothing is returned on validation failure.
func Update(existing Task, e Edit, now time.Time, lc Transitioner) (Task, Patch, error) {
	t := existing.Clone()

	if e.Title != nil {
		v, err := normalizeText("title", *e.Title)
		if err != nil {
			return Task{}, Patch{}, err
		}
		t.Title = v
	}
	if e.Description != nil {
		v, err := normalizeText("description", *e.Description)
		if err != nil {
			return Task{}, Patch{}, err
		}
		t.Description = v
	}
	if e.Date != nil || e.Time != nil {
		d, err := editDeadline(existing.Deadline, e)
		if err != nil {
			return Task{}, Patch{}, err
		}
		t.Deadline = &d
	}
	if e.Important != nil {
		t.IsImportant = *e.Important
	}
	if e.Attachment != nil {
		if err := ValidateAttachment(e.Attachment); err != nil {
			return Task{}, Patch{}, err
		}
		a := *e.Attachment
		t.Attachment = &a
	}
	if e.Completed != nil && *e.Completed != existing.IsCompleted {
		if lc == nil {
			return Task{}, Patch{}, fmt.Errorf("update task %s: no lifecycle engine", existing.ID)
		}
		var err error
		t, err = lc.SetCompleted(t, *e.Completed, now)
		if err != nil {
			return Task{}, Patch{}, err
		}
	}
	if err := t.Validate(); err != nil {
		return Task{}, Patch{}, err
	}

	t.UpdatedAt = now
	return t, Diff(existing, t), nil
}

// editDeadline resolves the deadline of an edit. A time without a date keeps
// the current deadline's date.
func editDeadline(current *time.Time, e Edit) (time.Time, error) {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	date := ""
	if e.Date != nil {
		date = *e.Date
	} else if current != nil {
		date = current.In(loc).Format(DateLayout)
	}
	clock := ""
	if e.Time != nil {
		clock = *e.Time
	} else if current != nil && e.Date != nil {
		clock = current.In(loc).Format(TimeLayout)
	}
	return ResolveDeadline(date, clock, loc)
}

// ResolveDeadline combines a date and an optional time of day into a single
// point in time in loc. An empty clock means 23:59.
func ResolveDeadline(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, &ValidationError{Field: "date", Reason: "required"}
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = DefaultDeadlineTime
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("cannot parse %q, want YYYY-MM-DD", date)}
	}
	c, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "time", Reason: fmt.Sprintf("cannot parse %q, want HH:MM", clock)}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}

func normalizeText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: field, Reason: "required"}
	}
	return s, nil
}

func checkText(field, s string) error {
	_, err := normalizeText(field, s)
	return err
}
