// Package local keeps learner state in a per-device SQLite database.
// It mirrors what the browser kept in local storage: one JSON snapshot
// per learner, plus a few summary columns for inspection.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// StateSnapshot is one learner's stored state.
type StateSnapshot struct {
	UserID       string `gorm:"primaryKey;size:128"`
	Data         []byte `gorm:"not null"`
	Achievements int
	Lessons      int
	Unread       int
	UpdatedAt    time.Time
}

// TableName implements gorm's Tabler.
func (StateSnapshot) TableName() string { return "state_snapshots" }

// SnapshotStore implements progress.Store on gorm.
type SnapshotStore struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates it.
func Open(path string) (*SnapshotStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("local: open %s: %w", path, err)
	}
	return NewSnapshotStore(db)
}

// NewSnapshotStore wraps an open gorm database and migrates the table.
func NewSnapshotStore(db *gorm.DB) (*SnapshotStore, error) {
	if err := db.AutoMigrate(&StateSnapshot{}); err != nil {
		return nil, fmt.Errorf("local: migrate: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Load implements progress.Store.
func (s *SnapshotStore) Load(ctx context.Context, userID string) (*progress.State, error) {
	var row StateSnapshot
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrStateNotFound
	}
	if err != nil {
		return nil, shared.WrapError("local", "Load", shared.ErrServiceUnavailable, "read snapshot", err)
	}

	var st progress.State
	if err := json.Unmarshal(row.Data, &st); err != nil {
		return nil, shared.WrapError("local", "Load", shared.ErrInvalidState, "corrupt snapshot", err)
	}
	st.Normalize()
	return &st, nil
}

// Save implements progress.Store.
func (s *SnapshotStore) Save(ctx context.Context, userID string, st *progress.State) error {
	if st == nil {
		return shared.NewDomainError("local", "Save", shared.ErrInvalidInput, "state is nil")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return shared.WrapError("local", "Save", shared.ErrInvalidState, "encode snapshot", err)
	}

	row := StateSnapshot{
		UserID:       userID,
		Data:         data,
		Achievements: st.Achievements,
		Lessons:      len(st.Lessons),
		Unread:       st.Notifications.UnreadCount(),
		UpdatedAt:    st.UpdatedAt,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "achievements", "lessons", "unread", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return shared.WrapError("local", "Save", shared.ErrServiceUnavailable, "write snapshot", err)
	}
	return nil
}

// Delete removes a learner's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&StateSnapshot{}).Error
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&StateSnapshot{}).Count(&n).Error
	return n, err
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
