package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EFFECTS
// ══════════════════════════════════════════════════════════════════════════════

// Effects - побочные эффекты перехода: уведомления и доменные события.
// Уведомления с Delay > 0 доставляются сессией по таймеру.
type Effects struct {
	Notices []notification.Notice
	Events  []shared.Event
}

func (fx *Effects) notify(n notification.Notice) {
	fx.Notices = append(fx.Notices, n)
}

func (fx *Effects) emit(e shared.Event) {
	fx.Events = append(fx.Events, e)
}

// IsEmpty - нет ни уведомлений, ни событий.
func (fx Effects) IsEmpty() bool {
	return len(fx.Notices) == 0 && len(fx.Events) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// Tracker применяет операции к State. Сам Tracker не хранит состояния
// и безопасен для конкурентного использования; State - нет.
type Tracker struct {
	catalog *catalog.Catalog
	policy  Policy
}

// NewTracker создаёт трекер.
func NewTracker(c *catalog.Catalog, p Policy) (*Tracker, error) {
	if c == nil {
		return nil, shared.NewDomainError("progress", "NewTracker", shared.ErrInvalidInput, "catalog is required")
	}
	if err := p.Validate(); err != nil {
		return nil, shared.WrapError("progress", "NewTracker", shared.ErrInvalidInput, "invalid policy", err)
	}
	return &Tracker{catalog: c, policy: p}, nil
}

// Catalog возвращает каталог трекера.
func (t *Tracker) Catalog() *catalog.Catalog { return t.catalog }

// Policy возвращает правила трекера.
func (t *Tracker) Policy() Policy { return t.policy }

// NewState создаёт пустое состояние по правилам трекера.
func (t *Tracker) NewState() *State {
	return NewState(t.policy.AchievementSeed)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSONS
// ══════════════════════════════════════════════════════════════════════════════

// StartLesson начинает урок. Повторный старт ничего не меняет
// и возвращает ErrLessonAlreadyStarted.
func (t *Tracker) StartLesson(st *State, user string, id catalog.LessonID, now time.Time) (Effects, error) {
	var fx Effects
	if !t.catalog.HasLesson(id) {
		return fx, shared.ErrUnknownLesson
	}
	if _, ok := st.Lessons[id]; ok {
		return fx, shared.ErrLessonAlreadyStarted
	}

	rec := newLessonProgress(id, now, t.policy.LessonWindow)
	st.Lessons[id] = rec
	st.UpdatedAt = now

	fx.notify(notification.Notice{
		Type:  notification.TypeInfo,
		Title: "Lesson Started",
		Message: fmt.Sprintf("You have %d days to complete %q. Progress resets if the lesson expires.",
			t.policy.windowDays(), t.catalog.LessonTitle(id)),
	})
	fx.emit(shared.NewLessonStartedEvent(user, id.Int(), now, rec.ExpiresAt))
	return fx, nil
}

// UpdateLessonProgress задаёт процент прохождения, не больше 100.
// Уменьшение процента допускается.
func (t *Tracker) UpdateLessonProgress(st *State, id catalog.LessonID, percent int, now time.Time) error {
	if !t.catalog.HasLesson(id) {
		return shared.ErrUnknownLesson
	}
	if percent < 0 {
		return shared.ErrInvalidProgress
	}
	rec, ok := st.Lessons[id]
	if !ok {
		return shared.ErrLessonNotStarted
	}

	rec.ProgressPercent = shared.Percent(percent).Cap().Int()
	st.Lessons[id] = rec
	st.UpdatedAt = now
	return nil
}

// SaveAndExitLesson сохраняет процент и сообщает об этом.
func (t *Tracker) SaveAndExitLesson(st *State, id catalog.LessonID, percent int, now time.Time) (Effects, error) {
	var fx Effects
	if err := t.UpdateLessonProgress(st, id, percent, now); err != nil {
		return fx, err
	}

	fx.notify(notification.Notice{
		Type:  notification.TypeSuccess,
		Title: "Progress Saved!",
		Message: fmt.Sprintf("Your progress on %q is saved at %d%%. Come back before it expires.",
			t.catalog.LessonTitle(id), st.Lessons[id].ProgressPercent),
	})
	return fx, nil
}

// CompleteLesson завершает урок: открывает связанные активности
// со сроком CompletedAt + ActivityDueOffset и проверяет пороги бейджей.
// Повторное завершение возвращает ErrLessonAlreadyCompleted и ничего не меняет.
func (t *Tracker) CompleteLesson(st *State, user string, id catalog.LessonID, now time.Time) (Effects, error) {
	var fx Effects
	if !t.catalog.HasLesson(id) {
		return fx, shared.ErrUnknownLesson
	}
	rec, ok := st.Lessons[id]
	if !ok {
		return fx, shared.ErrLessonNotStarted
	}
	if rec.Completed {
		return fx, shared.ErrLessonAlreadyCompleted
	}

	prevCompleted := st.CompletedLessons()

	rec.complete(now)
	st.Lessons[id] = rec
	st.UpdatedAt = now

	title := t.catalog.LessonTitle(id)
	st.pushRecent(RecentEntry{
		Kind:    RecentLesson,
		ItemID:  id.Int(),
		Title:   title,
		Percent: 100,
		At:      now,
	}, t.policy.RecentLimit)

	fx.notify(notification.Notice{
		Type:    notification.TypeSuccess,
		Title:   "Lesson Completed!",
		Message: fmt.Sprintf("Great job finishing %q!", title),
	})

	related := t.catalog.ActivitiesForLesson(id)
	due := now.Add(t.policy.ActivityDueOffset)
	var unlocked []int
	for _, a := range related {
		if _, exists := st.Activities[a.ID]; exists {
			continue
		}
		st.Activities[a.ID] = provisionedScore(a, due)
		unlocked = append(unlocked, a.ID.Int())
	}

	if len(related) > 0 {
		names := make([]string, 0, len(related))
		for _, a := range related {
			names = append(names, a.Title)
		}
		fx.notify(notification.Notice{
			Type:    notification.TypeInfo,
			Title:   "Activities Unlocked",
			Message: fmt.Sprintf("New activities are ready for %q: %s.", title, strings.Join(names, ", ")),
			Delay:   t.policy.UnlockNoticeDelay,
		})
	}

	curCompleted := prevCompleted + 1
	fx.emit(shared.NewLessonCompletedEvent(user, id.Int(), curCompleted, unlocked, now))
	t.awardCrossed(st, &fx, user, LessonMilestones, prevCompleted, curCompleted, now)

	return fx, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivity записывает результат активности.
// Повторное завершение возвращает ErrActivityAlreadyCompleted.
// maxScore <= 0 или score вне [0, maxScore] - ErrInvalidScore.
// Ранее назначенный срок (DueAt) сохраняется.
func (t *Tracker) CompleteActivity(st *State, user string, id catalog.ActivityID, score, maxScore int, now time.Time) (Effects, error) {
	var fx Effects
	if !t.catalog.HasActivity(id) {
		return fx, shared.ErrUnknownActivity
	}
	existing, exists := st.Activities[id]
	if exists && existing.Completed {
		return fx, shared.ErrActivityAlreadyCompleted
	}
	if err := validateScore(score, maxScore); err != nil {
		return fx, err
	}

	prevCompleted := st.CompletedActivities()
	hadPerfect := st.HasPerfectScore()

	completedAt := now
	rec := ActivityScore{
		ActivityID:  id,
		Score:       score,
		MaxScore:    maxScore,
		Completed:   true,
		CompletedAt: &completedAt,
	}
	if exists {
		rec.DueAt = existing.DueAt
		rec.ReminderSent = existing.ReminderSent
	}
	percent := rec.Percent()
	title := t.catalog.ActivityTitle(id)

	st.pushRecent(RecentEntry{
		Kind:     RecentActivity,
		ItemID:   id.Int(),
		Title:    title,
		Score:    score,
		MaxScore: maxScore,
		Percent:  percent.Int(),
		At:       now,
	}, t.policy.RecentLimit)

	if percent == shared.MaxPercent {
		fx.notify(notification.Notice{
			Type:    notification.TypeSuccess,
			Title:   "Perfect Score!",
			Message: fmt.Sprintf("You scored %d/%d on %q. Amazing!", score, maxScore, title),
		})
	} else {
		fx.notify(notification.Notice{
			Type:    notification.TypeInfo,
			Title:   "Activity Completed",
			Message: fmt.Sprintf("You scored %d/%d (%d%%) on %q.", score, maxScore, percent, title),
		})
	}

	fx.emit(shared.NewActivityCompletedEvent(user, id.Int(), score, maxScore, percent.Int(), now))

	t.awardCrossed(st, &fx, user, ActivityMilestones, prevCompleted, prevCompleted+1, now)
	if percent == shared.MaxPercent && !hadPerfect {
		t.award(st, &fx, user, BadgePerfectionist, perfectionistMessage, now)
	}

	st.Activities[id] = rec
	st.UpdatedAt = now
	return fx, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP
// ══════════════════════════════════════════════════════════════════════════════

// SweepOptions управляет дополнительными проверками сборщика.
type SweepOptions struct {
	// Reminders включает напоминания о скором сроке активностей.
	Reminders bool
}

// SweepResult - итог одного прохода сборщика.
type SweepResult struct {
	Effects

	Expired  []catalog.LessonID
	Skipped  []catalog.LessonID // записи с некорректными датами
	Reminded []catalog.ActivityID
}

// Changed - проход изменил состояние.
func (r SweepResult) Changed() bool {
	return len(r.Expired) > 0 || len(r.Reminded) > 0
}

// Sweep удаляет истёкшие незавершённые уроки (по одному предупреждению на урок)
// и, если включено, напоминает об активностях со сроком в пределах ReminderWindow.
// Записи с некорректными датами пропускаются и попадают в Skipped.
func (t *Tracker) Sweep(st *State, user string, now time.Time, opts SweepOptions) SweepResult {
	var res SweepResult

	for _, id := range st.LessonIDs() {
		rec := st.Lessons[id]
		if rec.Completed {
			continue
		}
		if !rec.HasSaneDates() {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if !rec.IsExpired(now) {
			continue
		}

		delete(st.Lessons, id)
		res.Expired = append(res.Expired, id)
		res.notify(notification.Notice{
			Type:  notification.TypeWarning,
			Title: "Lesson Expired",
			Message: fmt.Sprintf("%q expired before it was completed. Start it again to continue.",
				t.catalog.LessonTitle(id)),
		})
		res.emit(shared.NewLessonExpiredEvent(user, id.Int(), rec.ProgressPercent, rec.ExpiresAt, now))
	}

	if opts.Reminders && t.policy.ReminderWindow > 0 {
		t.remindDueSoon(st, &res, now)
	}

	if res.Changed() {
		st.UpdatedAt = now
	}
	return res
}

// remindDueSoon создаёт одно напоминание на каждую открытую незавершённую
// активность, срок которой наступит в пределах ReminderWindow.
func (t *Tracker) remindDueSoon(st *State, res *SweepResult, now time.Time) {
	for _, a := range t.catalog.Activities() {
		if !st.IsUnlocked(a) {
			continue
		}
		rec, exists := st.Activities[a.ID]
		if exists && (rec.Completed || rec.ReminderSent) {
			continue
		}

		due := dueDate(rec, exists, a)
		if due == nil || due.Before(now) || due.Sub(now) > t.policy.ReminderWindow {
			continue
		}

		if !exists {
			rec = ActivityScore{ActivityID: a.ID, MaxScore: a.TotalQuestions}
		}
		rec.ReminderSent = true
		st.Activities[a.ID] = rec

		res.Reminded = append(res.Reminded, a.ID)
		res.notify(notification.Notice{
			Type:    notification.TypeAssignment,
			Title:   "Activity Due Soon",
			Message: fmt.Sprintf("%q is due %s.", a.Title, timeutil.FormatRelative(now, *due)),
		})
	}
}

// dueDate - срок активности: из записи, иначе из каталога.
func dueDate(rec ActivityScore, exists bool, a catalog.Activity) *time.Time {
	if exists && rec.DueAt != nil {
		return rec.DueAt
	}
	return a.DueTimestamp
}
