// Package view derives what the user sees from an owner's snapshot: the
// filtered task list, per-category badge counts and ring-chart statistics.
// Everything here is a pure function of its inputs.
package view

import (
	"fmt"
	"strings"

	"taskdeck/internal/task"
)

// Mode selects which tasks a view shows.
type Mode string

const (
	All       Mode = "all"
	Pending   Mode = "pending"
	Completed Mode = "completed"
	Important Mode = "important"
	Archive   Mode = "archive"
)

// Modes lists every mode in display order.
var Modes = []Mode{All, Pending, Completed, Important, Archive}

// ParseMode parses a filter name. The empty string selects All.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "pending", "incomplete":
		return Pending, nil
	case "completed", "done":
		return Completed, nil
	case "important":
		return Important, nil
	case "archive", "archived":
		return Archive, nil
	}
	return "", &task.ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown view %q", s)}
}

// Includes reports whether t belongs to mode, ignoring any search query.
func (m Mode) Includes(t task.Task) bool {
	if m == Archive {
		return t.IsArchived
	}
	if t.IsArchived {
		return false
	}
	switch m {
	case Pending:
		return !t.IsCompleted
	case Completed:
		return t.IsCompleted
	case Important:
		return t.IsImportant
	default:
		return true
	}
}

// Matches reports whether query is a case-insensitive substring of the
// title or the description. An empty query matches everything. The query is
// taken literally, so surrounding spaces must match too; callers reading user
// input trim it with ParseQuery.
func Matches(t task.Task, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}

// ParseQuery normalises a search string typed by a user.
func ParseQuery(raw string) string {
	return strings.TrimSpace(raw)
}

// Filter returns the tasks visible in mode that match query, in input order.
func Filter(tasks []task.Task, mode Mode, query string) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if mode.Includes(t) && Matches(t, query) {
			out = append(out, t)
		}
	}
	return out
}

// Active returns the tasks that are not archived.
func Active(tasks []task.Task) []task.Task {
	return Filter(tasks, All, "")
}

// Counts holds the badge total of every mode. Counts ignore the active mode
// and query.
type Counts struct {
	All       int `json:"all"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Important int `json:"important"`
	Archive   int `json:"archive"`
}

// Count computes the badge totals for tasks.
func Count(tasks []task.Task) Counts {
	var c Counts
	for _, t := range tasks {
		if t.IsArchived {
			c.Archive++
			continue
		}
		c.All++
		if t.IsCompleted {
			c.Completed++
		} else {
			c.Pending++
		}
		if t.IsImportant {
			c.Important++
		}
	}
	return c
}

// Of returns the count for mode.
func (c Counts) Of(m Mode) int {
	switch m {
	case Pending:
		return c.Pending
	case Completed:
		return c.Completed
	case Important:
		return c.Important
	case Archive:
		return c.Archive
	default:
		return c.All
	}
}

// Result is a computed view.
type Result struct {
	Mode   Mode        `json:"mode"`
	Query  string      `json:"query,omitempty"`
	Tasks  []task.Task `json:"tasks"`
	Counts Counts      `json:"counts"`
}

// Compute filters tasks and counts every category in one pass over the snapshot.
func Compute(tasks []task.Task, mode Mode, query string) Result {
	return Result{
		Mode:   mode,
		Query:  query,
		Tasks:  Filter(tasks, mode, query),
		Counts: Count(tasks),
	}
}
