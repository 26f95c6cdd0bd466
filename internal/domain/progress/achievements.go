package progress

import (
	"fmt"
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// Milestone - порог, пересечение которого даёт бейдж.
type Milestone struct {
	Badge     string
	Threshold int
	Message   string
}

// Бейджи за уроки.
var LessonMilestones = []Milestone{
	{Badge: "First Lesson Complete", Threshold: 1, Message: "You completed your very first lesson!"},
	{Badge: "Dedicated Learner", Threshold: 5, Message: "Five lessons done. Keep it up!"},
	{Badge: "Lesson Master", Threshold: 10, Message: "Ten lessons completed. You are a Lesson Master!"},
}

// Бейджи за активности.
var ActivityMilestones = []Milestone{
	{Badge: "First Activity", Threshold: 1, Message: "You finished your first activity!"},
	{Badge: "Activity Explorer", Threshold: 5, Message: "Five activities explored!"},
	{Badge: "Activity Champion", Threshold: 10, Message: "Ten activities done. Champion!"},
}

// BadgePerfectionist - за первый результат 100%.
const BadgePerfectionist = "Perfectionist"

const perfectionistMessage = "You got a perfect score!"

// crossed - счётчик перешёл через порог: prev < t <= cur.
// В отличие от проверки на точное равенство, не пропускает порог при скачке счётчика.
func crossed(prev, cur, threshold int) bool {
	return prev < threshold && cur >= threshold
}

// awardCrossed выдаёт бейджи за все пересечённые пороги.
func (t *Tracker) awardCrossed(st *State, fx *Effects, user string, milestones []Milestone, prev, cur int, now time.Time) {
	for _, m := range milestones {
		if crossed(prev, cur, m.Threshold) {
			t.award(st, fx, user, m.Badge, m.Message, now)
		}
	}
}

// award увеличивает счётчик и добавляет отложенное уведомление.
// Повторная выдача того же бейджа ничего не делает.
func (t *Tracker) award(st *State, fx *Effects, user, badge, message string, now time.Time) bool {
	if st.HasBadge(badge) {
		return false
	}

	st.Achievements++
	st.Badges = append(st.Badges, Badge{Name: badge, AwardedAt: now})

	fx.notify(notification.Notice{
		Type:    notification.TypeSuccess,
		Title:   "Achievement Unlocked!",
		Message: fmt.Sprintf("%s You earned the %q badge.", message, badge),
		Delay:   t.policy.BadgeNoticeDelay,
	})
	fx.emit(shared.NewBadgeAwardedEvent(user, badge, st.Achievements, now))
	return true
}
