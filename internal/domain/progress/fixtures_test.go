package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
)

const user = "learner-1"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func lessonRef(id catalog.LessonID) *catalog.LessonID { return &id }

func timeRef(t time.Time) *time.Time { return &t }

// testCatalog: уроки 1..12; активности 10, 11 открывает урок 1, 12 - урок 2;
// 20 - свободная со сроком в каталоге; 101..110 - свободные без срока.
func testCatalog() *catalog.Catalog {
	lessons := make([]catalog.Lesson, 0, 12)
	for i := 1; i <= 12; i++ {
		lessons = append(lessons, catalog.Lesson{ID: catalog.LessonID(i), Title: fmt.Sprintf("Lesson Title %d", i)})
	}
	lessons[0].Title = "Counting to Ten"

	activities := []catalog.Activity{
		{ID: 10, Title: "Number Match", RelatedLessonID: lessonRef(1), TotalQuestions: 5},
		{ID: 11, Title: "Count the Apples", RelatedLessonID: lessonRef(1), TotalQuestions: 10},
		{ID: 12, Title: "Shape Sorter", RelatedLessonID: lessonRef(2), TotalQuestions: 4},
		{ID: 20, Title: "Weekly Quiz", DueTimestamp: timeRef(t0.Add(72 * time.Hour)), Color: "#ffcc00"},
	}
	for i := 101; i <= 110; i++ {
		activities = append(activities, catalog.Activity{ID: catalog.ActivityID(i), Title: fmt.Sprintf("Practice %d", i)})
	}

	return catalog.MustNew(lessons, activities)
}

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(testCatalog(), DefaultPolicy())
	require.NoError(t, err)
	return tr
}

func startAndComplete(t *testing.T, tr *Tracker, st *State, id catalog.LessonID, at time.Time) Effects {
	t.Helper()
	_, err := tr.StartLesson(st, user, id, at)
	require.NoError(t, err)
	fx, err := tr.CompleteLesson(st, user, id, at)
	require.NoError(t, err)
	return fx
}

func noticeTitles(ns []notification.Notice) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Title)
	}
	return out
}
