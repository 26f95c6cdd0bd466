package progress

import (
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// ActivityScore - результат активности.
//
// Запись появляется либо при завершении активности, либо заранее,
// когда завершён связанный урок (Score=0, Completed=false, DueAt задан).
type ActivityScore struct {
	ActivityID   catalog.ActivityID `json:"activityId"`
	Score        int                `json:"score"`
	MaxScore     int                `json:"maxScore"`
	DueAt        *time.Time         `json:"dueDate,omitempty"`
	Completed    bool               `json:"completed"`
	CompletedAt  *time.Time         `json:"completedDate,omitempty"`
	ReminderSent bool               `json:"reminderSent,omitempty"`
}

// provisionedScore - запись, открытая завершением урока.
func provisionedScore(a catalog.Activity, due time.Time) ActivityScore {
	return ActivityScore{
		ActivityID: a.ID,
		Score:      0,
		MaxScore:   a.TotalQuestions,
		DueAt:      &due,
	}
}

// Percent - результат в процентах, округление половины вверх.
func (a ActivityScore) Percent() shared.Percent {
	if a.MaxScore <= 0 {
		return 0
	}
	return shared.RoundPercent(float64(a.Score), float64(a.MaxScore))
}

// IsPerfect - 100% результат завершённой активности.
func (a ActivityScore) IsPerfect() bool {
	return a.Completed && a.Percent() == shared.MaxPercent
}

// validateScore проверяет 0 <= score <= maxScore и maxScore > 0.
func validateScore(score, maxScore int) error {
	if maxScore <= 0 || score < 0 || score > maxScore {
		return shared.ErrInvalidScore
	}
	return nil
}
