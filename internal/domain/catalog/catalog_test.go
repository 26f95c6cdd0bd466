package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

func lessonRef(id LessonID) *LessonID { return &id }

func sample() ([]Lesson, []Activity) {
	lessons := []Lesson{
		{ID: 1, Title: "Counting to Ten"},
		{ID: 2, Title: "Shapes Around Us"},
	}
	activities := []Activity{
		{ID: 10, Title: "Number Match", RelatedLessonID: lessonRef(1), TotalQuestions: 5},
		{ID: 20, Title: "Free Draw"},
		{ID: 11, Title: "Count the Apples", RelatedLessonID: lessonRef(1), TotalQuestions: 8},
		{ID: 12, Title: "Shape Sorter", RelatedLessonID: lessonRef(2), TotalQuestions: 6},
	}
	return lessons, activities
}

func TestNew_Lookups(t *testing.T) {
	c, err := New(sample())
	require.NoError(t, err)

	l, ok := c.Lesson(2)
	require.True(t, ok)
	assert.Equal(t, "Shapes Around Us", l.Title)

	_, ok = c.Activity(99)
	assert.False(t, ok)

	assert.True(t, c.HasLesson(1))
	assert.False(t, c.HasActivity(13))
	assert.Equal(t, []LessonID{1, 2}, c.LessonIDs())
}

func TestLessonTitle_Fallback(t *testing.T) {
	c := MustNew(sample())
	assert.Equal(t, "Counting to Ten", c.LessonTitle(1))
	assert.Equal(t, "Lesson 42", c.LessonTitle(42))
	assert.Equal(t, "Activity 7", c.ActivityTitle(7))
}

func TestActivitiesForLesson_KeepsCatalogOrder(t *testing.T) {
	c := MustNew(sample())

	got := c.ActivitiesForLesson(1)
	require.Len(t, got, 2)
	assert.Equal(t, ActivityID(10), got[0].ID)
	assert.Equal(t, ActivityID(11), got[1].ID)

	assert.Empty(t, c.ActivitiesForLesson(3))
}

func TestNew_RejectsBrokenCatalog(t *testing.T) {
	lessons, activities := sample()

	_, err := New(append(lessons, Lesson{ID: 1}), activities)
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = New(lessons, append(activities, Activity{ID: 30, RelatedLessonID: lessonRef(9)}))
	assert.True(t, shared.IsValidation(err))

	_, err = New(lessons, append(activities, Activity{ID: 10}))
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := MustNew(sample())
	ls := c.Lessons()
	ls[0].Title = "mutated"
	assert.Equal(t, "Counting to Ten", c.LessonTitle(1))
}

type stubProvider struct {
	lessons    []Lesson
	activities []Activity
	err        error
}

func (s stubProvider) GetLessons(context.Context) ([]Lesson, error) { return s.lessons, s.err }
func (s stubProvider) GetActivities(context.Context) ([]Activity, error) {
	return s.activities, nil
}

func TestLoad(t *testing.T) {
	lessons, activities := sample()
	c, err := Load(context.Background(), stubProvider{lessons: lessons, activities: activities})
	require.NoError(t, err)
	assert.Len(t, c.Activities(), 4)

	boom := errors.New("boom")
	_, err = Load(context.Background(), stubProvider{err: boom})
	assert.ErrorIs(t, err, boom)
}
