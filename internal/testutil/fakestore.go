// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

// UpdateCall records a single Update on a FakeStore.
type UpdateCall struct {
	ID    string
	Patch task.Patch
}

type subscriber struct {
	owner      string
	onSnapshot store.SnapshotFunc
	onError    store.ErrorFunc
}

// FakeStore is an in-memory implementation of store.Store for testing.
// Snapshots are delivered synchronously on the goroutine that caused the
// change, so callbacks must not call back into the store on the same
// goroutine.
type FakeStore struct {
	mu      sync.RWMutex
	tasks   map[string]task.Task
	subs    map[int]subscriber
	nextSub int
	updates []UpdateCall

	deliverMu sync.Mutex

	// Now stamps CreatedAt on tasks created without one.
	Now func() time.Time

	// Error injection for testing
	SubscribeErr error
	CreateErr    error
	UpdateErr    error
	DeleteErr    error
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		tasks: make(map[string]task.Task),
		subs:  make(map[int]subscriber),
		Now:   time.Now,
	}
}

// Seed stores t as-is, without notifying subscribers. A missing id is generated.
func (f *FakeStore) Seed(t task.Task) task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	f.tasks[t.ID] = t.Clone()
	return t
}

// Get returns the stored task with the given id.
func (f *FakeStore) Get(id string) (task.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tasks[id]
	return t.Clone(), ok
}

// Updates returns every Update call that reached the store.
func (f *FakeStore) Updates() []UpdateCall {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]UpdateCall, len(f.updates))
	copy(out, f.updates)
	return out
}

// Subscribers returns the number of open subscriptions.
func (f *FakeStore) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Snapshot returns the sorted task set of an owner.
func (f *FakeStore) Snapshot(owner string) []task.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshotLocked(owner)
}

// Publish pushes the current snapshot of owner to its subscribers.
func (f *FakeStore) Publish(owner string) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	snap := f.Snapshot(owner)
	for _, s := range f.subscribersOf(owner) {
		s.onSnapshot(cloneAll(snap))
	}
}

// Fail reports err to every subscriber of owner.
func (f *FakeStore) Fail(owner string, err error) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()
	for _, s := range f.subscribersOf(owner) {
		if s.onError != nil {
			s.onError(err)
		}
	}
}

// Subscribe implements store.Store.
func (f *FakeStore) Subscribe(ctx context.Context, ownerID string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	if f.SubscribeErr != nil {
		return nil, task.Op("subscribe", ownerID, f.SubscribeErr)
	}

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = subscriber{owner: ownerID, onSnapshot: onSnapshot, onError: onError}
	snap := f.snapshotLocked(ownerID)
	f.mu.Unlock()

	f.deliverMu.Lock()
	onSnapshot(snap)
	f.deliverMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}, nil
}

// Create implements store.Store.
func (f *FakeStore) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if f.CreateErr != nil {
		return task.Task{}, task.Op("create", "", f.CreateErr)
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	f.mu.Lock()
	t.ID = uuid.NewString()
	if t.CreatedAt == nil {
		t.CreatedAt = task.TimePtr(f.Now())
	}
	f.tasks[t.ID] = t.Clone()
	f.mu.Unlock()

	f.Publish(t.OwnerID)
	return t, nil
}

// Update implements store.Store.
func (f *FakeStore) Update(ctx context.Context, id string, p task.Patch) error {
	if f.UpdateErr != nil {
		return task.Op("update", id, f.UpdateErr)
	}

	f.mu.Lock()
	cur, ok := f.tasks[id]
	if !ok {
		f.mu.Unlock()
		return task.Op("update", id, store.ErrNotFound)
	}
	f.tasks[id] = p.Apply(cur).Clone()
	f.updates = append(f.updates, UpdateCall{ID: id, Patch: p})
	f.mu.Unlock()

	f.Publish(cur.OwnerID)
	return nil
}

// Delete implements store.Store.
func (f *FakeStore) Delete(ctx context.Context, id string) error {
	if f.DeleteErr != nil {
		return task.Op("delete", id, f.DeleteErr)
	}

	f.mu.Lock()
	cur, ok := f.tasks[id]
	if !ok {
		f.mu.Unlock()
		return task.Op("delete", id, store.ErrNotFound)
	}
	delete(f.tasks, id)
	f.mu.Unlock()

	f.Publish(cur.OwnerID)
	return nil
}

func (f *FakeStore) snapshotLocked(owner string) []task.Task {
	var out []task.Task
	for _, t := range f.tasks {
		if t.OwnerID == owner {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	store.SortSnapshot(out)
	return out
}

func (f *FakeStore) subscribersOf(owner string) []subscriber {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []subscriber
	for id := 0; id < f.nextSub; id++ {
		if s, ok := f.subs[id]; ok && s.owner == owner {
			out = append(out, s)
		}
	}
	return out
}

func cloneAll(tasks []task.Task) []task.Task {
	out := make([]task.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
