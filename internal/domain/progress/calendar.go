package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
)

// EventKind - источник события календаря.
type EventKind string

const (
	EventLessonExpiry EventKind = "lesson"
	EventActivityDue  EventKind = "activity"
)

// CalendarEvent - вычисляемое событие календаря. Не хранится.
type CalendarEvent struct {
	ID      string    `json:"id"`
	Kind    EventKind `json:"type"`
	ItemID  int       `json:"itemId"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Overdue bool      `json:"overdue"`
	Color   string    `json:"color,omitempty"`
}

// ProjectCalendar пересчитывает календарь целиком:
//  1. каждый незавершённый урок (по возрастанию ID) - событие на ExpiresAt;
//  2. каждая открытая и незавершённая активность каталога (в порядке каталога)
//     со сроком из записи или, если его нет, из каталога.
//
// Сначала уроки, затем активности.
func ProjectCalendar(st *State, c *catalog.Catalog, now time.Time) []CalendarEvent {
	events := make([]CalendarEvent, 0, len(st.Lessons)+len(st.Activities))

	for _, id := range st.LessonIDs() {
		rec := st.Lessons[id]
		if rec.Completed {
			continue
		}
		events = append(events, CalendarEvent{
			ID:      fmt.Sprintf("lesson-%d", id),
			Kind:    EventLessonExpiry,
			ItemID:  id.Int(),
			Title:   c.LessonTitle(id),
			Date:    rec.ExpiresAt,
			Overdue: now.After(rec.ExpiresAt),
		})
	}

	for _, a := range c.Activities() {
		if !st.IsUnlocked(a) {
			continue
		}
		rec, exists := st.Activities[a.ID]
		if exists && rec.Completed {
			continue
		}
		due := dueDate(rec, exists, a)
		if due == nil {
			continue
		}
		events = append(events, CalendarEvent{
			ID:      fmt.Sprintf("activity-%d", a.ID),
			Kind:    EventActivityDue,
			ItemID:  a.ID.Int(),
			Title:   c.ActivityTitle(a.ID),
			Date:    *due,
			Overdue: now.After(*due),
			Color:   a.Color,
		})
	}

	return events
}

// SortByDate упорядочивает события по дате, сохраняя порядок равных.
func SortByDate(events []CalendarEvent) []CalendarEvent {
	out := append([]CalendarEvent(nil), events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Upcoming возвращает до n ближайших непросроченных событий.
func Upcoming(events []CalendarEvent, n int) []CalendarEvent {
	n = max(0, min(n, len(events)))
	out := make([]CalendarEvent, 0, n)
	for _, e := range SortByDate(events) {
		if len(out) == n {
			break
		}
		if !e.Overdue {
			out = append(out, e)
		}
	}
	return out
}
