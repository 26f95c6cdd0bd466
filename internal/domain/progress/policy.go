// Package progress содержит ядро EduAid: трекеры уроков и активностей,
// счётчик достижений, проекцию календаря и агрегат общего прогресса.
//
// Трекер - чистый конечный автомат: текущее время передаётся явно,
// а побочные эффекты (уведомления, события) возвращаются в Effects.
// Сериализацию мутаций, таймеры и хранение обеспечивает слой application.
package progress

import (
	"errors"
	"time"

	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// Policy - правила жизненного цикла уроков и активностей.
type Policy struct {
	// LessonWindow - сколько живёт начатый, но не завершённый урок.
	LessonWindow time.Duration

	// ActivityDueOffset - срок активности от момента завершения урока.
	ActivityDueOffset time.Duration

	// UnlockNoticeDelay - задержка тоста "Activities Unlocked".
	UnlockNoticeDelay time.Duration

	// BadgeNoticeDelay - задержка тоста о бейдже.
	BadgeNoticeDelay time.Duration

	// AchievementSeed - начальное значение счётчика достижений.
	AchievementSeed int

	// RecentLimit - размер журнала недавней активности.
	RecentLimit int

	// ReminderWindow - за сколько до срока напоминать об активности. 0 отключает.
	ReminderWindow time.Duration
}

// DefaultPolicy возвращает правила по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		LessonWindow:      7 * timeutil.Day,
		ActivityDueOffset: timeutil.Day,
		UnlockNoticeDelay: 1500 * time.Millisecond,
		BadgeNoticeDelay:  3 * time.Second,
		AchievementSeed:   3,
		RecentLimit:       10,
		ReminderWindow:    12 * time.Hour,
	}
}

// Validate проверяет корректность правил.
func (p Policy) Validate() error {
	var errs []error
	if p.LessonWindow <= 0 {
		errs = append(errs, errors.New("lesson window must be positive"))
	}
	if p.ActivityDueOffset <= 0 {
		errs = append(errs, errors.New("activity due offset must be positive"))
	}
	if p.UnlockNoticeDelay < 0 || p.BadgeNoticeDelay < 0 {
		errs = append(errs, errors.New("notice delays must not be negative"))
	}
	if p.AchievementSeed < 0 {
		errs = append(errs, errors.New("achievement seed must not be negative"))
	}
	if p.RecentLimit <= 0 {
		errs = append(errs, errors.New("recent limit must be positive"))
	}
	if p.ReminderWindow < 0 {
		errs = append(errs, errors.New("reminder window must not be negative"))
	}
	return errors.Join(errs...)
}

// windowDays - окно урока в целых днях для текста уведомления.
func (p Policy) windowDays() int {
	d := int(p.LessonWindow / timeutil.Day)
	if d < 1 {
		d = 1
	}
	return d
}
