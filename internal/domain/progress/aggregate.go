package progress

import (
	"time"

	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/notification"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// OverallProgress - округлённое среднее процентов завершённых активностей.
// Без завершённых активностей - 0. Уроки в агрегат не входят.
func OverallProgress(st *State) shared.Percent {
	var percents []float64
	for _, a := range st.Activities {
		if !a.Completed || a.MaxScore <= 0 {
			continue
		}
		percents = append(percents, float64(a.Score)/float64(a.MaxScore)*100)
	}
	return shared.RoundMean(percents)
}

// Dashboard - сводка для главной страницы ученика.
type Dashboard struct {
	OverallProgress     int                         `json:"overallProgress"`
	Achievements        int                         `json:"achievements"`
	Badges              []Badge                     `json:"badges"`
	LessonsInProgress   int                         `json:"lessonsInProgress"`
	LessonsCompleted    int                         `json:"lessonsCompleted"`
	ActivitiesCompleted int                         `json:"activitiesCompleted"`
	UnreadNotifications int                         `json:"unreadNotifications"`
	RecentActivity      []RecentEntry               `json:"recentActivity"`
	Upcoming            []CalendarEvent             `json:"upcoming"`
	Notifications       []notification.Notification `json:"notifications"`
}

// dashboardNotifications - сколько последних уведомлений показывать в сводке.
const dashboardNotifications = 5

// BuildDashboard собирает сводку из состояния.
func BuildDashboard(st *State, c *catalog.Catalog, now time.Time) Dashboard {
	view := st.Notifications.View(now)
	if len(view) > dashboardNotifications {
		view = view[:dashboardNotifications]
	}

	return Dashboard{
		OverallProgress:     OverallProgress(st).Int(),
		Achievements:        st.Achievements,
		Badges:              append([]Badge{}, st.Badges...),
		LessonsInProgress:   st.LessonsInProgress(),
		LessonsCompleted:    st.CompletedLessons(),
		ActivitiesCompleted: st.CompletedActivities(),
		UnreadNotifications: st.Notifications.UnreadCount(),
		RecentActivity:      append([]RecentEntry{}, st.Recent...),
		Upcoming:            Upcoming(ProjectCalendar(st, c, now), 5),
		Notifications:       view,
	}
}
