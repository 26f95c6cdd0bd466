package progress

import (
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
)

// LessonProgress - запись о начатом уроке.
//
// Запись существует, пока урок начат и не истёк без завершения.
// StartedAt и ExpiresAt задаются один раз при создании.
type LessonProgress struct {
	LessonID        catalog.LessonID `json:"lessonId"`
	StartedAt       time.Time        `json:"startedDate"`
	ExpiresAt       time.Time        `json:"expirationDate"`
	ProgressPercent int              `json:"progress"`
	Completed       bool             `json:"completed"`
	CompletedAt     *time.Time       `json:"completedDate,omitempty"`
}

// newLessonProgress создаёт запись для только что начатого урока.
func newLessonProgress(id catalog.LessonID, now time.Time, window time.Duration) LessonProgress {
	return LessonProgress{
		LessonID:        id,
		StartedAt:       now,
		ExpiresAt:       now.Add(window),
		ProgressPercent: 0,
	}
}

// IsExpired - урок не завершён, и окно прошло.
func (l LessonProgress) IsExpired(now time.Time) bool {
	return !l.Completed && now.After(l.ExpiresAt)
}

// IsInProgress - урок начат и не завершён.
func (l LessonProgress) IsInProgress() bool {
	return !l.Completed
}

// HasSaneDates проверяет даты записи. Записи с нулевыми датами или
// ExpiresAt не позже StartedAt пропускаются сборщиком истёкших уроков.
func (l LessonProgress) HasSaneDates() bool {
	return !l.StartedAt.IsZero() && !l.ExpiresAt.IsZero() && l.ExpiresAt.After(l.StartedAt)
}

// complete переводит урок в завершённое состояние.
func (l *LessonProgress) complete(now time.Time) {
	at := now
	l.ProgressPercent = 100
	l.Completed = true
	l.CompletedAt = &at
}
