// Package session holds the per-learner progress engine.
//
// A Session owns one learner's progress.State. Every operation runs under the
// session mutex: the expiration sweep runs first, then the tracker transition,
// then its effects are materialized (notifications, events, persistence).
// Delayed notices are clock timers owned by the session and stopped on Close.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eduaid/eduaid-hub/config"
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = shared.NewDomainError("session", "exec", shared.ErrInvalidState, "session is closed")

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is the progress engine of a single learner.
type Session struct {
	userID string
	env    *env
	log    *logger.Logger

	mu      sync.Mutex
	state   *progress.State
	seq     *notification.Sequence
	timers  map[uint64]pendingNotice
	nextID  uint64
	closed  bool
	dirty   bool
	touched time.Time
}

type pendingNotice struct {
	timer  timeutil.Timer
	notice notification.Notice
}

func newSession(userID string, st *progress.State, e *env) *Session {
	st.Normalize()
	return &Session{
		userID:  userID,
		env:     e,
		log:     e.log.With(logger.UserID(userID)),
		state:   st,
		seq:     notification.NewSequence(st.Notifications.MaxID()),
		timers:  make(map[uint64]pendingNotice),
		touched: e.clock.Now(),
	}
}

// UserID returns the learner this session belongs to.
func (s *Session) UserID() string { return s.userID }

// ══════════════════════════════════════════════════════════════════════════════
// LESSONS
// ══════════════════════════════════════════════════════════════════════════════

// StartLesson starts a lesson. Starting an already started lesson returns
// shared.ErrLessonAlreadyStarted together with the untouched record.
func (s *Session) StartLesson(ctx context.Context, id catalog.LessonID) (progress.LessonProgress, error) {
	var rec progress.LessonProgress
	err := s.exec(ctx, "start_lesson", func(now time.Time) (progress.Effects, bool, error) {
		fx, err := s.env.tracker.StartLesson(s.state, s.userID, id, now)
		rec = s.state.Lessons[id]
		return fx, err == nil, err
	})
	return rec, err
}

// UpdateLessonProgress sets the completion percent of a started lesson.
func (s *Session) UpdateLessonProgress(ctx context.Context, id catalog.LessonID, percent int) (progress.LessonProgress, error) {
	var rec progress.LessonProgress
	err := s.exec(ctx, "update_lesson_progress", func(now time.Time) (progress.Effects, bool, error) {
		err := s.env.tracker.UpdateLessonProgress(s.state, id, percent, now)
		rec = s.state.Lessons[id]
		return progress.Effects{}, err == nil, err
	})
	return rec, err
}

// SaveAndExitLesson stores the percent and confirms it with a notification.
func (s *Session) SaveAndExitLesson(ctx context.Context, id catalog.LessonID, percent int) (progress.LessonProgress, error) {
	var rec progress.LessonProgress
	err := s.exec(ctx, "save_and_exit_lesson", func(now time.Time) (progress.Effects, bool, error) {
		fx, err := s.env.tracker.SaveAndExitLesson(s.state, id, percent, now)
		rec = s.state.Lessons[id]
		return fx, err == nil, err
	})
	return rec, err
}

// CompleteLesson completes a started lesson and unlocks its activities.
func (s *Session) CompleteLesson(ctx context.Context, id catalog.LessonID) (progress.LessonProgress, error) {
	var rec progress.LessonProgress
	err := s.exec(ctx, "complete_lesson", func(now time.Time) (progress.Effects, bool, error) {
		fx, err := s.env.tracker.CompleteLesson(s.state, s.userID, id, now)
		rec = s.state.Lessons[id]
		return fx, err == nil, err
	})
	return rec, err
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivity records an activity result.
func (s *Session) CompleteActivity(ctx context.Context, id catalog.ActivityID, score, maxScore int) (progress.ActivityScore, error) {
	var rec progress.ActivityScore
	err := s.exec(ctx, "complete_activity", func(now time.Time) (progress.Effects, bool, error) {
		fx, err := s.env.tracker.CompleteActivity(s.state, s.userID, id, score, maxScore, now)
		rec = s.state.Activities[id]
		return fx, err == nil, err
	})
	return rec, err
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// MarkRead marks one notification as read.
func (s *Session) MarkRead(ctx context.Context, id int64) error {
	return s.exec(ctx, "mark_read", func(time.Time) (progress.Effects, bool, error) {
		err := s.state.Notifications.MarkRead(id)
		return progress.Effects{}, err == nil, err
	})
}

// MarkAllRead marks every notification as read and returns how many changed.
func (s *Session) MarkAllRead(ctx context.Context) (int, error) {
	var n int
	err := s.exec(ctx, "mark_all_read", func(time.Time) (progress.Effects, bool, error) {
		n = s.state.Notifications.MarkAllRead()
		return progress.Effects{}, n > 0, nil
	})
	return n, err
}

// Notifications returns the log, newest first, with relative display times.
func (s *Session) Notifications(ctx context.Context) ([]notification.Notification, int, error) {
	var (
		list   []notification.Notification
		unread int
	)
	err := s.exec(ctx, "notifications", func(now time.Time) (progress.Effects, bool, error) {
		list = s.state.Notifications.View(now)
		unread = s.state.Notifications.UnreadCount()
		return progress.Effects{}, false, nil
	})
	return list, unread, err
}

// ══════════════════════════════════════════════════════════════════════════════
// READ MODELS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressView is the learner's raw progress with the derived aggregate.
type ProgressView struct {
	Lessons         []progress.LessonProgress `json:"lessons"`
	Activities      []progress.ActivityScore  `json:"activities"`
	OverallProgress int                       `json:"overallProgress"`
	Achievements    int                       `json:"achievements"`
	Badges          []progress.Badge          `json:"badges"`
}

// Dashboard returns the dashboard summary.
func (s *Session) Dashboard(ctx context.Context) (progress.Dashboard, error) {
	var d progress.Dashboard
	err := s.exec(ctx, "dashboard", func(now time.Time) (progress.Effects, bool, error) {
		d = progress.BuildDashboard(s.state, s.env.tracker.Catalog(), now)
		return progress.Effects{}, false, nil
	})
	return d, err
}

// Calendar returns the projected calendar events.
func (s *Session) Calendar(ctx context.Context) ([]progress.CalendarEvent, error) {
	var events []progress.CalendarEvent
	err := s.exec(ctx, "calendar", func(now time.Time) (progress.Effects, bool, error) {
		events = progress.ProjectCalendar(s.state, s.env.tracker.Catalog(), now)
		if s.env.features.IsEnabled(config.FeatureCalendarByDate, s.userID) {
			events = progress.SortByDate(events)
		}
		return progress.Effects{}, false, nil
	})
	return events, err
}

// Progress returns lesson and activity records ordered by id.
func (s *Session) Progress(ctx context.Context) (ProgressView, error) {
	var v ProgressView
	err := s.exec(ctx, "progress", func(time.Time) (progress.Effects, bool, error) {
		v = ProgressView{
			Lessons:         make([]progress.LessonProgress, 0, len(s.state.Lessons)),
			Activities:      make([]progress.ActivityScore, 0, len(s.state.Activities)),
			OverallProgress: progress.OverallProgress(s.state).Int(),
			Achievements:    s.state.Achievements,
			Badges:          append([]progress.Badge{}, s.state.Badges...),
		}
		for _, id := range s.state.LessonIDs() {
			v.Lessons = append(v.Lessons, s.state.Lessons[id])
		}
		for _, a := range s.state.Activities {
			v.Activities = append(v.Activities, a)
		}
		sort.Slice(v.Activities, func(i, j int) bool { return v.Activities[i].ActivityID < v.Activities[j].ActivityID })
		return progress.Effects{}, false, nil
	})
	return v, err
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() *progress.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP & LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Sweep runs the expiration and reminder pass on its own.
func (s *Session) Sweep(ctx context.Context) (progress.SweepResult, error) {
	var res progress.SweepResult
	events, err := func() ([]shared.Event, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, ErrSessionClosed
		}
		var events []shared.Event
		res, events = s.sweepLocked(s.env.clock.Now())
		if res.Changed() || s.dirty {
			_ = s.persistLocked(ctx)
		}
		return events, nil
	}()
	s.publish(events)
	return res, err
}

// PendingNotices returns the number of delayed notices not yet delivered.
func (s *Session) PendingNotices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// IdleSince returns the time of the last operation.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// HasUnsavedChanges reports whether the last save failed and the stored
// state is behind the session.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush saves the state again if an earlier save failed.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx)
}

// Close stops all pending notice timers and makes a last attempt to save
// unsaved changes. Further operations fail with ErrSessionClosed.
// Returns the number of dropped notices.
func (s *Session) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true

	if s.dirty {
		if err := s.persistLocked(context.Background()); err != nil {
			s.log.Error("session closed with unsaved progress state", logger.Err(err))
		}
	}

	dropped := 0
	for id, p := range s.timers {
		if p.timer.Stop() {
			dropped++
		}
		delete(s.timers, id)
	}
	if dropped > 0 {
		s.log.Debug("dropped pending notices", logger.Int("count", dropped))
	}
	return dropped
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERNALS
// ══════════════════════════════════════════════════════════════════════════════

type transition func(now time.Time) (fx progress.Effects, changed bool, err error)

// exec runs one operation: sweep, transition, effects, persistence.
// Events are published after the lock is released.
func (s *Session) exec(ctx context.Context, op string, fn transition) error {
	start := s.env.clock.Now()

	events, err := func() ([]shared.Event, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return nil, ErrSessionClosed
		}

		now := s.env.clock.Now()
		s.touched = now

		sweep, events := s.sweepLocked(now)
		fx, changed, err := fn(now)
		events = append(events, s.applyLocked(now, fx)...)

		if changed || sweep.Changed() || s.dirty {
			_ = s.persistLocked(ctx)
		}
		return events, err
	}()

	s.publish(events)
	s.logResult(op, err, s.env.clock.Now().Sub(start))
	return err
}

// sweepLocked expires lessons and sends due reminders.
func (s *Session) sweepLocked(now time.Time) (progress.SweepResult, []shared.Event) {
	res := s.env.tracker.Sweep(s.state, s.userID, now, progress.SweepOptions{
		Reminders: s.env.features.IsEnabled(config.FeatureDueReminders, s.userID),
	})

	for _, id := range res.Skipped {
		s.log.Warn("skipping lesson record with invalid dates", logger.LessonID(id.Int()))
	}
	for _, id := range res.Expired {
		s.log.Info("lesson expired", logger.LessonID(id.Int()))
	}
	return res, s.applyLocked(now, res.Effects)
}

// applyLocked materializes notices and collects events to publish.
func (s *Session) applyLocked(now time.Time, fx progress.Effects) []shared.Event {
	if fx.IsEmpty() {
		return nil
	}
	events := append([]shared.Event{}, fx.Events...)
	for _, n := range fx.Notices {
		if n.Delay > 0 {
			s.scheduleLocked(n)
			continue
		}
		events = append(events, s.addNoticeLocked(now, n))
	}
	return events
}

func (s *Session) addNoticeLocked(now time.Time, n notification.Notice) shared.Event {
	id := s.seq.Next(now)
	s.state.Notifications.Add(notification.New(id, n, now))
	return shared.NewNotificationAddedEvent(s.userID, id, n.Type.String(), n.Title, now)
}

func (s *Session) scheduleLocked(n notification.Notice) {
	s.nextID++
	id := s.nextID
	timer := s.env.clock.AfterFunc(n.Delay, func() { s.deliver(id) })
	s.timers[id] = pendingNotice{timer: timer, notice: n}
}

// deliver runs on the clock's timer goroutine.
func (s *Session) deliver(id uint64) {
	var event shared.Event

	s.mu.Lock()
	p, ok := s.timers[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)

	event = s.addNoticeLocked(s.env.clock.Now(), p.notice)
	_ = s.persistLocked(context.Background())
	s.mu.Unlock()

	s.publish([]shared.Event{event})
}

// persistLocked saves a snapshot with retries. A failure is logged and
// marks the session dirty; the in-memory state stays authoritative until a
// later save succeeds.
func (s *Session) persistLocked(ctx context.Context) error {
	if s.env.store == nil {
		return nil
	}
	snapshot := s.state.Clone()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.env.saveTimeout)
	defer cancel()

	err := s.env.retrier.Do(ctx, func(ctx context.Context) error {
		return s.env.store.Save(ctx, s.userID, snapshot)
	})
	s.dirty = err != nil
	if err != nil {
		s.log.Error("failed to persist progress state", logger.Err(err))
	}
	return err
}

func (s *Session) publish(events []shared.Event) {
	if s.env.publisher == nil {
		return
	}
	for _, e := range events {
		if err := s.env.publisher.Publish(e); err != nil {
			s.log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.Err(err),
			)
		}
	}
}

func (s *Session) logResult(op string, err error, latency time.Duration) {
	fields := []logger.Field{logger.Operation(op), logger.Latency(latency)}
	switch {
	case err == nil:
		s.log.Debug("operation completed", fields...)
	case shared.IsNoOp(err):
		s.log.Debug("operation was a no-op", append(fields, logger.Err(err))...)
	case shared.IsValidation(err), shared.IsNotFound(err):
		s.log.Info("operation rejected", append(fields, logger.Err(err))...)
	default:
		s.log.Error("operation failed", append(fields, logger.Err(err))...)
	}
}
