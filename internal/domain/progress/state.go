package progress

import (
	"sort"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECENT ACTIVITY & BADGES
// ══════════════════════════════════════════════════════════════════════════════

// RecentKind - тип записи недавней активности.
type RecentKind string

const (
	RecentLesson   RecentKind = "lesson"
	RecentActivity RecentKind = "activity"
)

// RecentEntry - запись журнала недавней активности.
type RecentEntry struct {
	Kind     RecentKind `json:"type"`
	ItemID   int        `json:"itemId"`
	Title    string     `json:"title"`
	Score    int        `json:"score,omitempty"`
	MaxScore int        `json:"maxScore,omitempty"`
	Percent  int        `json:"percent"`
	At       time.Time  `json:"date"`
}

// Badge - полученный бейдж.
type Badge struct {
	Name      string    `json:"name"`
	AwardedAt time.Time `json:"awardedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State - всё состояние прогресса одного ученика.
// Календарь и общий прогресс не хранятся, а вычисляются из State.
type State struct {
	Lessons       map[catalog.LessonID]LessonProgress  `json:"lessonProgress"`
	Activities    map[catalog.ActivityID]ActivityScore `json:"activityScores"`
	Notifications notification.Log                     `json:"notifications"`
	Recent        []RecentEntry                        `json:"recentActivity"`
	Achievements  int                                  `json:"achievements"`
	Badges        []Badge                              `json:"badges"`
	UpdatedAt     time.Time                            `json:"updatedAt"`
}

// NewState создаёт пустое состояние со стартовым значением счётчика достижений.
func NewState(achievementSeed int) *State {
	return &State{
		Lessons:       make(map[catalog.LessonID]LessonProgress),
		Activities:    make(map[catalog.ActivityID]ActivityScore),
		Notifications: notification.Log{},
		Recent:        []RecentEntry{},
		Achievements:  achievementSeed,
		Badges:        []Badge{},
	}
}

// Normalize заполняет nil-коллекции после десериализации.
func (s *State) Normalize() {
	if s.Lessons == nil {
		s.Lessons = make(map[catalog.LessonID]LessonProgress)
	}
	if s.Activities == nil {
		s.Activities = make(map[catalog.ActivityID]ActivityScore)
	}
	if s.Notifications == nil {
		s.Notifications = notification.Log{}
	}
	if s.Recent == nil {
		s.Recent = []RecentEntry{}
	}
	if s.Badges == nil {
		s.Badges = []Badge{}
	}
}

// Clone возвращает глубокую копию состояния.
func (s *State) Clone() *State {
	c := &State{
		Lessons:       make(map[catalog.LessonID]LessonProgress, len(s.Lessons)),
		Activities:    make(map[catalog.ActivityID]ActivityScore, len(s.Activities)),
		Notifications: s.Notifications.Clone(),
		Recent:        append([]RecentEntry{}, s.Recent...),
		Achievements:  s.Achievements,
		Badges:        append([]Badge{}, s.Badges...),
		UpdatedAt:     s.UpdatedAt,
	}
	if c.Notifications == nil {
		c.Notifications = notification.Log{}
	}
	for id, l := range s.Lessons {
		l.CompletedAt = cloneTime(l.CompletedAt)
		c.Lessons[id] = l
	}
	for id, a := range s.Activities {
		a.DueAt = cloneTime(a.DueAt)
		a.CompletedAt = cloneTime(a.CompletedAt)
		c.Activities[id] = a
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LessonIDs возвращает ID записей уроков по возрастанию.
func (s *State) LessonIDs() []catalog.LessonID {
	ids := make([]catalog.LessonID, 0, len(s.Lessons))
	for id := range s.Lessons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CompletedLessons - число завершённых уроков.
func (s *State) CompletedLessons() int {
	n := 0
	for _, l := range s.Lessons {
		if l.Completed {
			n++
		}
	}
	return n
}

// LessonsInProgress - число начатых и не завершённых уроков.
func (s *State) LessonsInProgress() int {
	n := 0
	for _, l := range s.Lessons {
		if l.IsInProgress() {
			n++
		}
	}
	return n
}

// CompletedActivities - число завершённых активностей.
func (s *State) CompletedActivities() int {
	n := 0
	for _, a := range s.Activities {
		if a.Completed {
			n++
		}
	}
	return n
}

// HasPerfectScore - есть ли хоть одна активность со 100%.
func (s *State) HasPerfectScore() bool {
	for _, a := range s.Activities {
		if a.IsPerfect() {
			return true
		}
	}
	return false
}

// HasBadge проверяет, получен ли бейдж.
func (s *State) HasBadge(name string) bool {
	for _, b := range s.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// IsLessonCompleted - урок завершён.
func (s *State) IsLessonCompleted(id catalog.LessonID) bool {
	l, ok := s.Lessons[id]
	return ok && l.Completed
}

// IsUnlocked - активность без связанного урока или связанный урок завершён.
func (s *State) IsUnlocked(a catalog.Activity) bool {
	return a.RelatedLessonID == nil || s.IsLessonCompleted(*a.RelatedLessonID)
}

// pushRecent добавляет запись в начало журнала и обрезает его до limit.
func (s *State) pushRecent(e RecentEntry, limit int) {
	s.Recent = append([]RecentEntry{e}, s.Recent...)
	if limit > 0 && len(s.Recent) > limit {
		s.Recent = s.Recent[:limit]
	}
}
