// Package sqlstore is a store.Store on a SQL database through gorm. Live
// snapshots are driven by a notify.Notifier: every write publishes a change
// for the owner and each subscription re-queries on the signal.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskdeck/internal/notify"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

// Store is a gorm-backed task store.
type Store struct {
	db       *gorm.DB
	notifier notify.Notifier
	now      func() time.Time
	log      *slog.Logger
}

// Open opens (creating if needed) a SQLite database at path.
func Open(path string, n notify.Notifier, debug bool) (*Store, error) {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)
	return New(db, n)
}

// New wraps db and migrates the schema.
func New(db *gorm.DB, n notify.Notifier) (*Store, error) {
	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if n == nil {
		n = notify.NewLocal()
	}
	return &Store{db: db, notifier: n, now: time.Now, log: slog.Default()}, nil
}

// Close closes the notifier and the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return errors.Join(s.notifier.Close(), sqlDB.Close())
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(ctx context.Context, ownerID string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	changes, stop, err := s.notifier.Subscribe(ctx, ownerID)
	if err != nil {
		cancel()
		return nil, task.Op("subscribe", ownerID, err)
	}

	go func() {
		push := func() {
			tasks, err := s.list(ctx, ownerID)
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(task.Op("subscribe", ownerID, err))
				}
				return
			}
			if ctx.Err() == nil {
				onSnapshot(tasks)
			}
		}

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				push()
			}
		}
	}()

	return func() {
		cancel()
		stop()
	}, nil
}

func (s *Store) list(ctx context.Context, ownerID string) ([]task.Task, error) {
	var recs []taskRecord
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]task.Task, 0, len(recs))
	for _, r := range recs {
		tasks = append(tasks, r.toTask())
	}
	store.SortSnapshot(tasks)
	return tasks, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	t.ID = uuid.NewString()
	if t.CreatedAt == nil {
		t.CreatedAt = task.TimePtr(s.now())
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = *t.CreatedAt
	}

	rec := toRecord(t)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return task.Task{}, task.Op("create", "", err)
	}
	s.changed(ctx, t.OwnerID)
	return t, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, id string, p task.Patch) error {
	var owner string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec taskRecord
		if err := tx.Select("id", "owner_id").First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		owner = rec.OwnerID

		cols := patchColumns(p)
		if len(cols) == 0 {
			return nil
		}
		return tx.Model(&taskRecord{}).Where("id = ?", id).Updates(cols).Error
	})
	if err != nil {
		return task.Op("update", id, err)
	}
	s.changed(ctx, owner)
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	var rec taskRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "owner_id").First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		return tx.Delete(&taskRecord{}, "id = ?", id).Error
	})
	if err != nil {
		return task.Op("delete", id, err)
	}
	s.changed(ctx, rec.OwnerID)
	return nil
}

// changed publishes a change signal. The write already succeeded, so a
// failure here only delays other subscribers until their next signal.
func (s *Store) changed(ctx context.Context, ownerID string) {
	if err := s.notifier.Publish(ctx, ownerID); err != nil {
		s.log.Warn("publish task change failed", "owner", ownerID, "error", err)
	}
}
