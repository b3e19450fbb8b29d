package view

import "taskdeck/internal/task"

// RingCircumference is the stroke length of the default stats ring (r=36).
const RingCircumference = 226.0

// Segment is one arc of the stats ring.
type Segment struct {
	Name   string  `json:"name"`
	Length float64 `json:"length"`
	Offset float64 `json:"offset"`
}

// Stats summarises the active (non-archived) tasks.
type Stats struct {
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Pending   int       `json:"pending"`
	Important int       `json:"important"`
	Segments  []Segment `json:"segments"`
}

// Fraction returns n as a share of the total, or 0 when there are no tasks.
func (s Stats) Fraction(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) / float64(s.Total)
}

// ComputeStats computes stats on the default ring.
func ComputeStats(tasks []task.Task) Stats {
	return ComputeStatsOn(tasks, RingCircumference)
}

// ComputeStatsOn computes stats for a ring of the given circumference.
// Archived tasks are ignored. Segments are ordered completed, pending,
// important with cumulative offsets. Important tasks are also counted as
// completed or pending, so when the three shares add up to more than one
// whole ring they are scaled down to fit.
func ComputeStatsOn(tasks []task.Task, circumference float64) Stats {
	c := Count(tasks)
	s := Stats{
		Total:     c.All,
		Completed: c.Completed,
		Pending:   c.Pending,
		Important: c.Important,
	}

	parts := []struct {
		name string
		n    int
	}{
		{"completed", s.Completed},
		{"pending", s.Pending},
		{"important", s.Important},
	}

	sum := 0.0
	for _, p := range parts {
		sum += s.Fraction(p.n)
	}
	scale := 1.0
	if sum > 1 {
		scale = 1 / sum
	}

	offset := 0.0
	s.Segments = make([]Segment, 0, len(parts))
	for _, p := range parts {
		length := s.Fraction(p.n) * scale * circumference
		s.Segments = append(s.Segments, Segment{Name: p.name, Length: length, Offset: offset})
		offset += length
	}
	return s
}
