// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskdeck/internal/task"
	"taskdeck/internal/view"
)

const (
	// Separator is the rule printed between output sections.
	Separator = "------------"

	clockLayout = "3:04 PM"
	shortLayout = "Jan 2, 3:04 PM"
	stampLayout = "2006-01-02 15:04"
)

// FormatTask formats a task line.
// Format: "{N:>4}  {BOX} {STAR} {TITLE}[  due {LABEL}]\n"
// BOX is [ ] pending, [x] completed or [A] archived; STAR is * when important.
func FormatTask(w io.Writer, num int, t task.Task, now time.Time, loc *time.Location) {
	star := " "
	if t.IsImportant {
		star = "*"
	}
	fmt.Fprintf(w, "%4d  %s %s %s", num, statusBox(t.Status()), star, normalizeTitle(t.Title))
	if t.Deadline != nil {
		fmt.Fprintf(w, "  due %s", DeadlineLabel(t, now, loc))
	}
	fmt.Fprintln(w)
}

// FormatTasks formats a numbered task list. Numbers start at 1 and are the
// references accepted by the task commands.
func FormatTasks(w io.Writer, tasks []task.Task, now time.Time, loc *time.Location) {
	for i, t := range tasks {
		FormatTask(w, i+1, t, now, loc)
	}
}

// DeadlineLabel renders a task's deadline relative to now:
// "Today at 3:04 PM", "Tomorrow at 3:04 PM" or "Jan 2, 3:04 PM".
// Overdue tasks get an " (Overdue)" suffix. Tasks without a deadline
// render as "".
func DeadlineLabel(t task.Task, now time.Time, loc *time.Location) string {
	if t.Deadline == nil {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	d := t.Deadline.In(loc)
	n := now.In(loc)

	var label string
	switch {
	case sameDay(d, n):
		label = "Today at " + d.Format(clockLayout)
	case sameDay(d, n.AddDate(0, 0, 1)):
		label = "Tomorrow at " + d.Format(clockLayout)
	default:
		label = d.Format(shortLayout)
	}
	if t.IsOverdue(now) {
		label += " (Overdue)"
	}
	return label
}

// FormatCounts formats the per-view badge line. The active view is bracketed.
func FormatCounts(w io.Writer, c view.Counts, active view.Mode) {
	parts := make([]string, 0, len(view.Modes))
	for _, m := range view.Modes {
		p := fmt.Sprintf("%s %d", m, c.Of(m))
		if m == active {
			p = "[" + p + "]"
		}
		parts = append(parts, p)
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}

// FormatStats formats the stats summary with one row per ring segment.
func FormatStats(w io.Writer, s view.Stats) {
	fmt.Fprintf(w, "%-10s %3d\n", "total", s.Total)
	rows := []struct {
		name string
		n    int
	}{
		{"completed", s.Completed},
		{"pending", s.Pending},
		{"important", s.Important},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s %3d  %3.0f%%\n", r.name, r.n, s.Fraction(r.n)*100)
	}
}

// FormatDetail formats every field of a task.
func FormatDetail(w io.Writer, t task.Task, now time.Time, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	row := func(k, v string) { fmt.Fprintf(w, "%-12s %s\n", k+":", v) }

	row("ID", t.ID)
	row("Title", normalizeTitle(t.Title))
	row("Status", string(t.Status()))
	if t.IsImportant {
		row("Important", "yes")
	}
	if t.Deadline != nil {
		row("Due", DeadlineLabel(t, now, loc))
	}
	if t.CreatedAt != nil {
		row("Created", t.CreatedAt.In(loc).Format(stampLayout))
	}
	if t.CompletedAt != nil {
		row("Completed", t.CompletedAt.In(loc).Format(stampLayout))
	}
	if t.ArchivedAt != nil {
		row("Archived", t.ArchivedAt.In(loc).Format(stampLayout))
	}
	if a := t.Attachment; a != nil {
		kind := "download"
		if a.IsImage() {
			kind = "image"
		}
		row("Attachment", fmt.Sprintf("%s (%s, %s, %s)", a.Name, a.Type, FormatSize(a.Size), kind))
	}
	if strings.TrimSpace(t.Description) != "" {
		fmt.Fprintln(w, Separator)
		fmt.Fprintln(w, t.Description)
	}
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func statusBox(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return "[x]"
	case task.StatusArchived:
		return "[A]"
	default:
		return "[ ]"
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
