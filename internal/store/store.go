// Package store defines the contract between the task core and a document
// store with live subscriptions. Adapters live in subpackages and in
// internal/backend.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"taskdeck/internal/task"
)

// ErrNotFound is returned when a task id does not exist in the store.
var ErrNotFound = errors.New("task not found")

// ErrUnauthorized is returned when the store rejects the caller's credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ErrAmbiguous is returned when a task reference matches more than one task.
var ErrAmbiguous = errors.New("ambiguous task reference")

// SnapshotFunc receives the complete, sorted task set of an owner.
type SnapshotFunc func(tasks []task.Task)

// ErrorFunc receives subscription errors. The subscription stays open.
type ErrorFunc func(err error)

// Unsubscribe cancels a subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is a per-owner document store with live snapshots.
//
// Subscribe delivers the owner's full task set once on subscription and
// again after every change, ordered by CreatedAt descending. Create assigns
// the id and returns the stored task. Update merges the patch into an existing
// document and Delete removes it. Failures are reported as
// *task.OperationError.
type Store interface {
	Subscribe(ctx context.Context, ownerID string, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)
	Create(ctx context.Context, t task.Task) (task.Task, error)
	Update(ctx context.Context, id string, p task.Patch) error
	Delete(ctx context.Context, id string) error
}

// SortSnapshot orders tasks by CreatedAt, newest first. Tasks without a
// creation time sort last. Ties keep their relative order.
func SortSnapshot(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt, tasks[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// Fetch returns the current snapshot of an owner by subscribing and
// unsubscribing after the first delivery.
func Fetch(ctx context.Context, s Store, ownerID string) ([]task.Task, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snaps := make(chan []task.Task, 1)
	errs := make(chan error, 1)
	unsub, err := s.Subscribe(ctx, ownerID,
		func(tasks []task.Task) {
			select {
			case snaps <- tasks:
			default:
			}
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	)
	if err != nil {
		return nil, task.Op("subscribe", ownerID, err)
	}
	defer unsub()

	select {
	case tasks := <-snaps:
		return tasks, nil
	case err := <-errs:
		return nil, task.Op("subscribe", ownerID, err)
	case <-ctx.Done():
		return nil, task.Op("subscribe", ownerID, ctx.Err())
	}
}

// Find returns the task with the given id.
func Find(tasks []task.Task, id string) (task.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}

// FindPrefix returns the single task whose id starts with prefix. An exact
// match always wins.
func FindPrefix(tasks []task.Task, prefix string) (task.Task, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return task.Task{}, ErrNotFound
	}
	if t, ok := Find(tasks, prefix); ok {
		return t, nil
	}
	var matches []task.Task
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return task.Task{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return task.Task{}, ErrAmbiguous
	}
}
