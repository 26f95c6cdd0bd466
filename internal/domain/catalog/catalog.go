// Package catalog содержит справочники контента EduAid: уроки и активности.
//
// Каталог неизменяем после загрузки. Активность может ссылаться на урок
// (RelatedLessonID), завершение которого её открывает.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// LessonID - числовой идентификатор урока.
type LessonID int

// ActivityID - числовой идентификатор активности.
type ActivityID int

// Int возвращает значение как int.
func (id LessonID) Int() int { return int(id) }

// Int возвращает значение как int.
func (id ActivityID) Int() int { return int(id) }

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Lesson описывает урок.
type Lesson struct {
	ID          LessonID `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Duration    string   `json:"duration,omitempty" yaml:"duration"`
}

// Activity описывает активность (мини-игру, квиз).
type Activity struct {
	ID              ActivityID `json:"id" yaml:"id"`
	Title           string     `json:"title" yaml:"title"`
	RelatedLessonID *LessonID  `json:"relatedLessonId,omitempty" yaml:"related_lesson_id"`
	TotalQuestions  int        `json:"totalQuestions,omitempty" yaml:"total_questions"`
	DueTimestamp    *time.Time `json:"dueTimestamp,omitempty" yaml:"due_timestamp"`
	Color           string     `json:"color,omitempty" yaml:"color"`
}

// IsGated возвращает true, если активность открывается уроком.
func (a Activity) IsGated() bool {
	return a.RelatedLessonID != nil
}

// UnlockedBy проверяет, открывается ли активность данным уроком.
func (a Activity) UnlockedBy(lessonID LessonID) bool {
	return a.RelatedLessonID != nil && *a.RelatedLessonID == lessonID
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - неизменяемый справочник уроков и активностей.
// Порядок активностей сохраняется: календарь обходит их в порядке каталога.
type Catalog struct {
	lessons    []Lesson
	activities []Activity

	lessonIdx   map[LessonID]int
	activityIdx map[ActivityID]int
}

// New строит каталог и проверяет его целостность:
// уникальные ID и существующие связанные уроки.
func New(lessons []Lesson, activities []Activity) (*Catalog, error) {
	c := &Catalog{
		lessons:     append([]Lesson(nil), lessons...),
		activities:  append([]Activity(nil), activities...),
		lessonIdx:   make(map[LessonID]int, len(lessons)),
		activityIdx: make(map[ActivityID]int, len(activities)),
	}

	for i, l := range c.lessons {
		if _, dup := c.lessonIdx[l.ID]; dup {
			return nil, shared.NewDomainError("catalog", "New", shared.ErrAlreadyExists,
				fmt.Sprintf("duplicate lesson id %d", l.ID))
		}
		c.lessonIdx[l.ID] = i
	}

	for i, a := range c.activities {
		if _, dup := c.activityIdx[a.ID]; dup {
			return nil, shared.NewDomainError("catalog", "New", shared.ErrAlreadyExists,
				fmt.Sprintf("duplicate activity id %d", a.ID))
		}
		if a.RelatedLessonID != nil {
			if _, ok := c.lessonIdx[*a.RelatedLessonID]; !ok {
				return nil, shared.NewDomainError("catalog", "New", shared.ErrInvalidID,
					fmt.Sprintf("activity %d references unknown lesson %d", a.ID, *a.RelatedLessonID))
			}
		}
		if a.TotalQuestions < 0 {
			return nil, shared.NewDomainError("catalog", "New", shared.ErrNegativeValue,
				fmt.Sprintf("activity %d has negative total questions", a.ID))
		}
		c.activityIdx[a.ID] = i
	}

	return c, nil
}

// MustNew - как New, но паникует при ошибке. Для тестов и встроенного каталога.
func MustNew(lessons []Lesson, activities []Activity) *Catalog {
	c, err := New(lessons, activities)
	if err != nil {
		panic(err)
	}
	return c
}

// Lessons возвращает копию списка уроков.
func (c *Catalog) Lessons() []Lesson {
	return append([]Lesson(nil), c.lessons...)
}

// Activities возвращает копию списка активностей в порядке каталога.
func (c *Catalog) Activities() []Activity {
	return append([]Activity(nil), c.activities...)
}

// Lesson ищет урок по ID.
func (c *Catalog) Lesson(id LessonID) (Lesson, bool) {
	i, ok := c.lessonIdx[id]
	if !ok {
		return Lesson{}, false
	}
	return c.lessons[i], true
}

// Activity ищет активность по ID.
func (c *Catalog) Activity(id ActivityID) (Activity, bool) {
	i, ok := c.activityIdx[id]
	if !ok {
		return Activity{}, false
	}
	return c.activities[i], true
}

// HasLesson проверяет наличие урока.
func (c *Catalog) HasLesson(id LessonID) bool {
	_, ok := c.lessonIdx[id]
	return ok
}

// HasActivity проверяет наличие активности.
func (c *Catalog) HasActivity(id ActivityID) bool {
	_, ok := c.activityIdx[id]
	return ok
}

// LessonTitle возвращает название урока или "Lesson {id}", если урока нет в каталоге.
func (c *Catalog) LessonTitle(id LessonID) string {
	if l, ok := c.Lesson(id); ok && l.Title != "" {
		return l.Title
	}
	return fmt.Sprintf("Lesson %d", id)
}

// ActivityTitle возвращает название активности или "Activity {id}".
func (c *Catalog) ActivityTitle(id ActivityID) string {
	if a, ok := c.Activity(id); ok && a.Title != "" {
		return a.Title
	}
	return fmt.Sprintf("Activity %d", id)
}

// ActivitiesForLesson возвращает активности, которые открывает урок, в порядке каталога.
func (c *Catalog) ActivitiesForLesson(id LessonID) []Activity {
	var out []Activity
	for _, a := range c.activities {
		if a.UnlockedBy(id) {
			out = append(out, a)
		}
	}
	return out
}

// LessonIDs возвращает отсортированные ID уроков.
func (c *Catalog) LessonIDs() []LessonID {
	ids := make([]LessonID, 0, len(c.lessons))
	for _, l := range c.lessons {
		ids = append(ids, l.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// Provider - внешний источник контента (только чтение).
type Provider interface {
	// GetLessons возвращает все уроки.
	GetLessons(ctx context.Context) ([]Lesson, error)

	// GetActivities возвращает все активности.
	GetActivities(ctx context.Context) ([]Activity, error)
}

// Load читает уроки и активности из провайдера и собирает каталог.
func Load(ctx context.Context, p Provider) (*Catalog, error) {
	lessons, err := p.GetLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load lessons: %w", err)
	}
	activities, err := p.GetActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load activities: %w", err)
	}
	return New(lessons, activities)
}
