package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
)

func TestParsePoolConfig(t *testing.T) {
	cfg, err := ParsePoolConfig("postgres://u:p@localhost:5432/eduaid?sslmode=disable", PoolOptions{
		MaxConns:        4,
		MinConns:        8,
		MaxConnIdleTime: time.Minute,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, cfg.MaxConns)
	assert.EqualValues(t, 4, cfg.MinConns, "min is clamped to max")
	assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, "eduaid", cfg.ConnConfig.Database)

	_, err = ParsePoolConfig("postgres://u:p@localhost:notaport/eduaid", DefaultPoolOptions())
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "08006"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("boom")))
}

func TestMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
	for _, table := range childTables {
		assert.True(t, strings.Contains(migration001Up, "CREATE TABLE IF NOT EXISTS "+table.name+" ("), table.name)
	}
}

func TestToRows(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	due := at.Add(24 * time.Hour)

	st := progress.NewState(3)
	st.Lessons[2] = progress.LessonProgress{LessonID: 2, StartedAt: at, ExpiresAt: at.Add(time.Hour), ProgressPercent: 40}
	st.Lessons[1] = progress.LessonProgress{LessonID: 1, StartedAt: at, ExpiresAt: at.Add(time.Hour), ProgressPercent: 100, Completed: true, CompletedAt: &at}
	st.Activities[10] = progress.ActivityScore{ActivityID: 10, MaxScore: 5, DueAt: &due}
	st.Notifications.Add(notification.New(1, notification.Notice{Type: notification.TypeSuccess, Title: "Lesson Completed!"}, at))
	st.Recent = append(st.Recent, progress.RecentEntry{Kind: progress.RecentLesson, ItemID: 1, Percent: 100, At: at})
	st.Badges = append(st.Badges, progress.Badge{Name: "First Lesson Complete", AwardedAt: at})

	rows := toRows(st)

	require.Len(t, rows["lesson_progress"], 2)
	assert.Equal(t, 1, rows["lesson_progress"][0][0], "lessons are written in id order")
	assert.Equal(t, int16(100), rows["lesson_progress"][0][3])

	require.Len(t, rows["activity_scores"], 1)
	assert.Equal(t, &due, rows["activity_scores"][0][3])

	require.Len(t, rows["notifications"], 1)
	assert.Equal(t, "success", rows["notifications"][0][1])

	require.Len(t, rows["recent_activity"], 1)
	assert.Equal(t, int16(0), rows["recent_activity"][0][0])
	assert.Equal(t, "lesson", rows["recent_activity"][0][1])

	for _, table := range childTables {
		for _, row := range rows[table.name] {
			assert.Len(t, row, len(table.columns)-1, table.name)
		}
	}
}
