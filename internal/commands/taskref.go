package commands

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"taskdeck/internal/store"
	"taskdeck/internal/task"
	"taskdeck/internal/view"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num int    // 1-based position in the current view, 0 if ID is set
	ID  string // task id or a unique id prefix
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

func (r TaskRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return strconv.Itoa(r.Num)
}

// ParseTaskRef parses a single task reference.
//
// Parsing rules:
// 1. All digits → position in the view (must be >= 1)
// 2. Letters, digits, '-' and '_' → id or id prefix
// 3. Otherwise → error: invalid task reference: <ref>
func ParseTaskRef(s string) (TaskRef, error) {
	if s == "" {
		return TaskRef{}, ErrTaskRefRequired
	}
	if isAllDigits(s) {
		num, err := strconv.Atoi(s)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", s)
		}
		if num < 1 {
			return TaskRef{}, fmt.Errorf("task number out of range: %d", num)
		}
		return TaskRef{Num: num}, nil
	}
	for _, r := range s {
		if !isIDRune(r) {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", s)
		}
	}
	return TaskRef{ID: s}, nil
}

// ParseTaskRefs parses one or more task references.
func ParseTaskRefs(args []string) ([]TaskRef, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}
	refs := make([]TaskRef, 0, len(args))
	for _, a := range args {
		ref, err := ParseTaskRef(a)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Resolve finds the task ref points at. Positions index the computed view;
// id prefixes are matched against the whole snapshot so archived tasks can
// be reached from any view.
func (r TaskRef) Resolve(res view.Result, all []task.Task) (task.Task, error) {
	if r.ID == "" {
		if r.Num < 1 || r.Num > len(res.Tasks) {
			return task.Task{}, fmt.Errorf("task number out of range: %d", r.Num)
		}
		return res.Tasks[r.Num-1], nil
	}
	t, err := store.FindPrefix(all, r.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("%w: %s", err, r.ID)
	}
	return t, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIDRune(r rune) bool {
	return r == '-' || r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
