package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Progress.LessonWindow)
	assert.Equal(t, 24*time.Hour, cfg.Progress.ActivityDueOffset)
	assert.Equal(t, 1500*time.Millisecond, cfg.Progress.UnlockNoticeDelay)
	assert.Equal(t, 3*time.Second, cfg.Progress.BadgeNoticeDelay)
	assert.Equal(t, 3, cfg.Progress.AchievementSeed)
	assert.Equal(t, 10, cfg.Progress.RecentLimit)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.SweepInterval)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("STORAGE_BACKEND", "SQLite")
	t.Setenv("LOCAL_DB_PATH", "/tmp/state.db")
	t.Setenv("SCHEDULER_SWEEP_INTERVAL", "30s")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FEATURE_NOTIFY_DUE_REMINDERS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/state.db", cfg.Local.Path)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.SweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.Features.IsEnabled(FeatureDueReminders, "u1"))
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("PROGRESS_RECENT_LIMIT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "PROGRESS_RECENT_LIMIT")
}

func TestValidate_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

func TestFeatureFlags(t *testing.T) {
	ff := NewFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureDueReminders, "u1"))
	assert.False(t, ff.IsEnabled(FeatureCalendarByDate, "u1"))
	assert.False(t, ff.IsEnabled("unknown.flag", "u1"))

	ff.SetUserOverride("u1", FeatureCalendarByDate, true)
	assert.True(t, ff.IsEnabled(FeatureCalendarByDate, "u1"))
	assert.False(t, ff.IsEnabled(FeatureCalendarByDate, "u2"))

	require.NoError(t, ff.SetRolloutPercent(FeatureCalendarByDate, 100))
	assert.True(t, ff.IsEnabled(FeatureCalendarByDate, "u2"))

	assert.ErrorIs(t, ff.SetRolloutPercent("unknown.flag", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureDueReminders, 101), ErrInvalidRolloutPercent)
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := NewFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureCalendarByDate, 50))

	first := ff.IsEnabled(FeatureCalendarByDate, "learner-42")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureCalendarByDate, "learner-42"))
	}

	var nilFlags *FeatureFlags
	assert.True(t, nilFlags.IsEnabled(FeatureDueReminders, "x"))
}
