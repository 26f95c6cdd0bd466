package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/application/session"
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	related := catalog.LessonID(1)
	cat := catalog.MustNew(
		[]catalog.Lesson{{ID: 1, Title: "Counting to Ten"}},
		[]catalog.Activity{{ID: 10, Title: "Number Match", RelatedLessonID: &related, TotalQuestions: 5}},
	)
	tr, err := progress.NewTracker(cat, progress.DefaultPolicy())
	require.NoError(t, err)

	m, err := session.NewManager(session.Options{
		Tracker: tr,
		Clock:   timeutil.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.CloseAll() })
	return m
}

func TestCommands_Validate(t *testing.T) {
	cases := []struct {
		name string
		cmd  interface{ Validate() error }
	}{
		{"start without user", StartLessonCommand{LessonID: 1}},
		{"start zero lesson", StartLessonCommand{UserID: "u1"}},
		{"update zero lesson", UpdateLessonProgressCommand{UserID: "u1", Percent: 10}},
		{"complete without user", CompleteLessonCommand{LessonID: 1}},
		{"activity zero id", CompleteActivityCommand{UserID: "u1", Score: 1, MaxScore: 1}},
		{"mark read zero id", MarkNotificationsReadCommand{UserID: "u1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cmd.Validate()
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.True(t, shared.IsValidation(err))
		})
	}

	assert.NoError(t, MarkNotificationsReadCommand{UserID: "u1", All: true}.Validate())
}

func TestCommands_LessonFlow(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	started, err := NewStartLessonHandler(m).Handle(ctx, StartLessonCommand{UserID: "u1", LessonID: 1})
	require.NoError(t, err)
	assert.Equal(t, catalog.LessonID(1), started.Lesson.LessonID)

	_, err = NewStartLessonHandler(m).Handle(ctx, StartLessonCommand{UserID: "u1", LessonID: 1})
	assert.True(t, shared.IsNoOp(err))

	updated, err := NewUpdateLessonProgressHandler(m).Handle(ctx, UpdateLessonProgressCommand{UserID: "u1", LessonID: 1, Percent: 130})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.Lesson.ProgressPercent)

	saved, err := NewUpdateLessonProgressHandler(m).Handle(ctx, UpdateLessonProgressCommand{UserID: "u1", LessonID: 1, Percent: 80, Exit: true})
	require.NoError(t, err)
	assert.Equal(t, 80, saved.Lesson.ProgressPercent)

	done, err := NewCompleteLessonHandler(m).Handle(ctx, CompleteLessonCommand{UserID: "u1", LessonID: 1})
	require.NoError(t, err)
	assert.True(t, done.Lesson.Completed)

	_, err = NewCompleteLessonHandler(m).Handle(ctx, CompleteLessonCommand{UserID: "u1", LessonID: 1})
	assert.ErrorIs(t, err, shared.ErrLessonAlreadyCompleted)
}

func TestCommands_CompleteActivity(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	h := NewCompleteActivityHandler(m)

	_, err := h.Handle(ctx, CompleteActivityCommand{UserID: "u1", ActivityID: 10, Score: 6, MaxScore: 5})
	assert.ErrorIs(t, err, shared.ErrInvalidScore)

	res, err := h.Handle(ctx, CompleteActivityCommand{UserID: "u1", ActivityID: 10, Score: 2, MaxScore: 3})
	require.NoError(t, err)
	assert.Equal(t, 67, res.Percent)
	assert.True(t, res.Activity.Completed)

	_, err = h.Handle(ctx, CompleteActivityCommand{UserID: "u1", ActivityID: 99, Score: 1, MaxScore: 1})
	assert.ErrorIs(t, err, shared.ErrUnknownActivity)
}

func TestCommands_MarkNotificationsRead(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	_, err := NewStartLessonHandler(m).Handle(ctx, StartLessonCommand{UserID: "u1", LessonID: 1})
	require.NoError(t, err)

	h := NewMarkNotificationsReadHandler(m)
	_, err = h.Handle(ctx, MarkNotificationsReadCommand{UserID: "u1", NotificationID: 1})
	assert.ErrorIs(t, err, shared.ErrNotificationNotFound)

	res, err := h.Handle(ctx, MarkNotificationsReadCommand{UserID: "u1", All: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Marked)
}
