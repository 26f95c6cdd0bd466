package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

func TestNewManager_RequiresTracker(t *testing.T) {
	_, err := NewManager(Options{})
	assert.True(t, shared.IsValidation(err))
}

func TestManager_OpenReturnsSameSession(t *testing.T) {
	h := newHarness(t, nil)

	a := h.open(t, "learner-1")
	b := h.open(t, " learner-1 ")
	c := h.open(t, "learner-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, h.manager.Count())
	assert.Equal(t, []string{"learner-1", "learner-2"}, h.manager.UserIDs())
}

func TestManager_OpenRejectsInvalidUserID(t *testing.T) {
	h := newHarness(t, nil)

	for _, id := range []string{"", "   ", "has space", "-leading"} {
		_, err := h.manager.Open(context.Background(), id)
		assert.ErrorIs(t, err, shared.ErrInvalidUserID, "%q", id)
	}
	assert.Zero(t, h.manager.Count())
}

func TestManager_OpenSurfacesLoadFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.store.loadErr = errors.New("db down")

	_, err := h.manager.Open(context.Background(), "learner-1")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Zero(t, h.manager.Count())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	a := h.open(t, "learner-1")
	b := h.open(t, "learner-2")

	_, err := a.StartLesson(ctx, 1)
	require.NoError(t, err)

	assert.Len(t, a.Snapshot().Lessons, 1)
	assert.Empty(t, b.Snapshot().Lessons)

	_, err = b.StartLesson(ctx, 1)
	require.NoError(t, err)
}

func TestManager_CloseAndCloseAll(t *testing.T) {
	h := newHarness(t, nil)

	s := h.open(t, "learner-1")
	h.open(t, "learner-2")
	h.open(t, "learner-3")

	assert.True(t, h.manager.Close("learner-1"))
	assert.False(t, h.manager.Close("learner-1"))
	_, err := s.Dashboard(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.Equal(t, 2, h.manager.CloseAll())
	assert.Zero(t, h.manager.Count())
}

func TestManager_SweepAll(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	a := h.open(t, "learner-1")
	b := h.open(t, "learner-2")
	_, err := a.StartLesson(ctx, 1)
	require.NoError(t, err)
	_, err = a.StartLesson(ctx, 2)
	require.NoError(t, err)
	_, err = b.StartLesson(ctx, 3)
	require.NoError(t, err)

	h.clock.Advance(8 * 24 * time.Hour)

	stats, err := h.manager.SweepAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepStats{Sessions: 2, Expired: 3}, stats)

	stats, err = h.manager.SweepAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepStats{Sessions: 2}, stats)
}

func TestManager_SweepAllStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.open(t, "learner-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := h.manager.SweepAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Sessions)
}

func TestManager_PersistsAcrossSessions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	s := h.open(t, "learner-1")
	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	_, err = s.CompleteLesson(ctx, 1)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Second)
	h.manager.Close("learner-1")

	s = h.open(t, "learner-1")
	v, err := s.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Achievements)
	require.Len(t, v.Lessons, 1)
	assert.True(t, v.Lessons[0].Completed)
	assert.Len(t, v.Activities, 2)
}
