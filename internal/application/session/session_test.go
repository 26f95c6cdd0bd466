package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/config"
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/retry"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeStore struct {
	mu        sync.Mutex
	states    map[string][]byte
	saves     int
	failSaves int
	loadErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string][]byte)}
}

func (f *fakeStore) Load(_ context.Context, userID string) (*progress.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	data, ok := f.states[userID]
	if !ok {
		return nil, shared.ErrStateNotFound
	}
	var st progress.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	st.Normalize()
	return &st, nil
}

func (f *fakeStore) Save(_ context.Context, userID string, st *progress.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("connection reset")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	f.states[userID] = data
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeStore) stored(t *testing.T, userID string) *progress.State {
	t.Helper()
	st, err := f.Load(context.Background(), userID)
	require.NoError(t, err)
	return st
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type staticFlags map[string]bool

func (f staticFlags) IsEnabled(name, _ string) bool { return f[name] }

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func lessonRef(id catalog.LessonID) *catalog.LessonID { return &id }

func testCatalog() *catalog.Catalog {
	due := t0.Add(30 * time.Hour)
	return catalog.MustNew(
		[]catalog.Lesson{
			{ID: 1, Title: "Counting to Ten"},
			{ID: 2, Title: "Shapes Around Us"},
			{ID: 3, Title: "Adding Up"},
		},
		[]catalog.Activity{
			{ID: 10, Title: "Number Match", RelatedLessonID: lessonRef(1), TotalQuestions: 5},
			{ID: 11, Title: "Count the Apples", RelatedLessonID: lessonRef(1), TotalQuestions: 10},
			{ID: 20, Title: "Weekly Quiz", DueTimestamp: &due},
		},
	)
}

type harness struct {
	clock   *timeutil.FakeClock
	store   *fakeStore
	pub     *recordingPublisher
	manager *Manager
}

func newHarness(t *testing.T, features Features) *harness {
	t.Helper()
	tr, err := progress.NewTracker(testCatalog(), progress.DefaultPolicy())
	require.NoError(t, err)

	h := &harness{
		clock: timeutil.NewFakeClock(t0),
		store: newFakeStore(),
		pub:   &recordingPublisher{},
	}
	if features == nil {
		features = staticFlags{config.FeatureDueReminders: true}
	}
	h.manager, err = NewManager(Options{
		Tracker:   tr,
		Store:     h.store,
		Publisher: h.pub,
		Clock:     h.clock,
		Features:  features,
		Retrier:   PersistenceRetrier(retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.manager.CloseAll() })
	return h
}

func (h *harness) open(t *testing.T, userID string) *Session {
	t.Helper()
	s, err := h.manager.Open(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func titles(ns []notification.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Title)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestSession_DelayedNoticesArriveInOrder(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	_, err = s.CompleteLesson(ctx, 1)
	require.NoError(t, err)

	list, _, err := s.Notifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lesson Completed!", "Lesson Started"}, titles(list))
	assert.Equal(t, 2, s.PendingNotices())

	h.clock.Advance(1500 * time.Millisecond)
	list, _, err = s.Notifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Activities Unlocked", list[0].Title)
	assert.Equal(t, 1, s.PendingNotices())

	h.clock.Advance(1500 * time.Millisecond)
	list, unread, err := s.Notifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Achievement Unlocked!", "Activities Unlocked", "Lesson Completed!", "Lesson Started"}, titles(list))
	assert.Equal(t, 4, unread)
	assert.Zero(t, s.PendingNotices())

	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1].ID, list[i].ID)
	}

	stored := h.store.stored(t, "learner-1")
	assert.Len(t, stored.Notifications, 4)
	assert.Equal(t, 4, stored.Achievements)
}

func TestSession_CloseCancelsPendingNotices(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	_, err = s.CompleteLesson(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Close())
	h.clock.Advance(10 * time.Second)

	assert.Len(t, s.Snapshot().Notifications, 2)
	assert.Zero(t, h.clock.Pending())

	_, err = s.StartLesson(ctx, 2)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Zero(t, s.Close())
}

func TestSession_PublishesEvents(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")

	_, err := s.StartLesson(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []shared.EventType{shared.EventLessonStarted, shared.EventNotificationAdded}, h.pub.types())
}

func TestSession_NoOpDoesNotPersist(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	first, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	saves := h.store.saveCount()

	h.clock.Advance(time.Hour)
	again, err := s.StartLesson(ctx, 1)
	assert.ErrorIs(t, err, shared.ErrLessonAlreadyStarted)
	assert.Equal(t, first, again)
	assert.Equal(t, saves, h.store.saveCount())
}

func TestSession_SweepsBeforeEveryOperation(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.StartLesson(ctx, 2)
	require.NoError(t, err)
	_, err = s.UpdateLessonProgress(ctx, 2, 50)
	require.NoError(t, err)

	h.clock.Advance(7*24*time.Hour + time.Second)

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.LessonsInProgress)
	assert.Equal(t, "Lesson Expired", d.Notifications[0].Title)
	assert.Equal(t, notification.TypeWarning, d.Notifications[0].Type)

	_, err = s.Dashboard(ctx)
	require.NoError(t, err)
	list, _, err := s.Notifications(ctx)
	require.NoError(t, err)
	warnings := 0
	for _, n := range list {
		if n.Type == notification.TypeWarning {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)

	assert.NotContains(t, h.store.stored(t, "learner-1").Lessons, catalog.LessonID(2))
	assert.Contains(t, h.pub.types(), shared.EventLessonExpired)
}

func TestSession_PersistRetriesAndKeepsStateOnFailure(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	h.store.failSaves = 1
	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, h.store.saveCount())
	assert.Contains(t, h.store.stored(t, "learner-1").Lessons, catalog.LessonID(1))

	h.store.failSaves = 10
	_, err = s.UpdateLessonProgress(ctx, 1, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, s.Snapshot().Lessons[1].ProgressPercent)
	assert.Equal(t, 0, h.store.stored(t, "learner-1").Lessons[1].ProgressPercent)
}

func TestSession_UnsavedStateIsSavedLater(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	assert.False(t, s.HasUnsavedChanges())

	h.store.failSaves = 3
	_, err = s.UpdateLessonProgress(ctx, 1, 60)
	require.NoError(t, err)
	assert.True(t, s.HasUnsavedChanges())
	assert.Equal(t, 0, h.store.stored(t, "learner-1").Lessons[1].ProgressPercent)

	h.store.failSaves = 3
	assert.Error(t, s.Flush(ctx))
	assert.True(t, s.HasUnsavedChanges())

	// a no-op still saves the pending state
	_, err = s.StartLesson(ctx, 1)
	assert.ErrorIs(t, err, shared.ErrLessonAlreadyStarted)
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, 60, h.store.stored(t, "learner-1").Lessons[1].ProgressPercent)
	assert.NoError(t, s.Flush(ctx))
}

func TestSession_CloseSavesUnsavedState(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	h.store.failSaves = 3
	_, err = s.UpdateLessonProgress(ctx, 1, 45)
	require.NoError(t, err)
	require.True(t, s.HasUnsavedChanges())

	require.True(t, h.manager.Close("learner-1"))
	assert.Equal(t, 45, h.store.stored(t, "learner-1").Lessons[1].ProgressPercent)

	reopened := h.open(t, "learner-1")
	assert.Equal(t, 45, reopened.Snapshot().Lessons[1].ProgressPercent)
}

func TestSession_ActivityFlow(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.CompleteActivity(ctx, 10, 0, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidScore)

	rec, err := s.CompleteActivity(ctx, 10, 5, 5)
	require.NoError(t, err)
	assert.True(t, rec.Completed)

	_, err = s.CompleteActivity(ctx, 11, 3, 10)
	require.NoError(t, err)

	v, err := s.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 65, v.OverallProgress)
	assert.Equal(t, 5, v.Achievements)
	require.Len(t, v.Activities, 2)
	assert.Equal(t, catalog.ActivityID(10), v.Activities[0].ActivityID)

	_, err = s.CompleteActivity(ctx, 10, 1, 5)
	assert.True(t, shared.IsNoOp(err))
}

func TestSession_MarkRead(t *testing.T) {
	h := newHarness(t, nil)
	s := h.open(t, "learner-1")
	ctx := context.Background()

	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	_, err = s.StartLesson(ctx, 2)
	require.NoError(t, err)

	list, unread, err := s.Notifications(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, unread)

	require.NoError(t, s.MarkRead(ctx, list[1].ID))
	_, unread, err = s.Notifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	assert.ErrorIs(t, s.MarkRead(ctx, 12345), shared.ErrNotificationNotFound)

	n, err := s.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_CalendarOrderFollowsFeatureFlag(t *testing.T) {
	ctx := context.Background()

	for _, byDate := range []bool{false, true} {
		h := newHarness(t, staticFlags{config.FeatureCalendarByDate: byDate})
		s := h.open(t, "learner-1")

		_, err := s.StartLesson(ctx, 2)
		require.NoError(t, err)

		events, err := s.Calendar(ctx)
		require.NoError(t, err)
		ids := []string{events[0].ID, events[1].ID}
		if byDate {
			assert.Equal(t, []string{"activity-20", "lesson-2"}, ids)
		} else {
			assert.Equal(t, []string{"lesson-2", "activity-20"}, ids)
		}
	}
}

func TestSession_DueReminderFollowsFeatureFlag(t *testing.T) {
	ctx := context.Background()

	off := newHarness(t, staticFlags{})
	s := off.open(t, "learner-1")
	off.clock.Advance(20 * time.Hour)
	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Reminded)

	on := newHarness(t, staticFlags{config.FeatureDueReminders: true})
	s = on.open(t, "learner-1")
	on.clock.Advance(20 * time.Hour)
	res, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []catalog.ActivityID{20}, res.Reminded)

	list, _, err := s.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeAssignment, list[0].Type)
}

func TestSession_ReloadContinuesNotificationIDs(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	s := h.open(t, "learner-1")
	_, err := s.StartLesson(ctx, 1)
	require.NoError(t, err)
	before := s.Snapshot().Notifications.MaxID()
	require.True(t, h.manager.Close("learner-1"))

	// a clock step backwards must not produce a smaller id
	h.clock.Set(t0.Add(-time.Hour))
	s = h.open(t, "learner-1")
	_, err = s.StartLesson(ctx, 2)
	require.NoError(t, err)

	st := s.Snapshot()
	require.Len(t, st.Notifications, 2)
	assert.Greater(t, st.Notifications[0].ID, before)
}
