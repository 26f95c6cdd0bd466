package local

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

func openTemp(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "eduaid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrStateNotFound)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	st := progress.NewState(3)
	st.Lessons[1] = progress.LessonProgress{LessonID: 1, StartedAt: at, ExpiresAt: at.Add(7 * 24 * time.Hour), ProgressPercent: 50}
	st.Notifications.Add(notification.New(1, notification.Notice{Type: notification.TypeInfo, Title: "Lesson Started"}, at))
	st.UpdatedAt = at
	require.NoError(t, s.Save(ctx, "u1", st))

	got, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Lessons[1].ProgressPercent)
	assert.True(t, got.Lessons[1].ExpiresAt.Equal(at.Add(7*24*time.Hour)))
	assert.Len(t, got.Notifications, 1)

	// upsert replaces the row
	st.Achievements = 4
	require.NoError(t, s.Save(ctx, "u1", st))
	got, err = s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Achievements)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var row StateSnapshot
	require.NoError(t, s.db.First(&row, "user_id = ?", "u1").Error)
	assert.Equal(t, 1, row.Lessons)
	assert.Equal(t, 1, row.Unread)

	require.NoError(t, s.Delete(ctx, "u1"))
	_, err = s.Load(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrStateNotFound)
}

func TestSnapshotStore_CorruptRow(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.db.Create(&StateSnapshot{UserID: "u1", Data: []byte("nope")}).Error)

	_, err := s.Load(context.Background(), "u1")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSnapshotStore_NilState(t *testing.T) {
	s := openTemp(t)
	assert.True(t, shared.IsValidation(s.Save(context.Background(), "u1", nil)))
}
