package query

import (
	"context"

	"github.com/eduaid/eduaid-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CALENDAR QUERY
// Календарь пересчитывается из состояния при каждом запросе:
// сроки незавершённых уроков и открытых активностей.
// ══════════════════════════════════════════════════════════════════════════════

// GetCalendarQuery - параметры запроса календаря.
type GetCalendarQuery struct {
	UserID string

	// UpcomingOnly - только непросроченные события, по дате.
	UpcomingOnly bool

	// Limit ограничивает UpcomingOnly-выдачу (0 = без ограничения).
	Limit int
}

// CalendarDTO - ответ на запрос календаря.
type CalendarDTO struct {
	Events  []progress.CalendarEvent `json:"events"`
	Overdue int                      `json:"overdue"`
}

// GetCalendarHandler обрабатывает GetCalendarQuery.
type GetCalendarHandler struct {
	sessions SessionOpener
}

// NewGetCalendarHandler создаёт обработчик.
func NewGetCalendarHandler(sessions SessionOpener) *GetCalendarHandler {
	return &GetCalendarHandler{sessions: sessions}
}

// Handle выполняет запрос.
func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (*CalendarDTO, error) {
	if err := validateUser("get_calendar", q.UserID); err != nil {
		return nil, err
	}
	s, err := h.sessions.Open(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	events, err := s.Calendar(ctx)
	if err != nil {
		return nil, err
	}

	dto := &CalendarDTO{Events: events}
	for _, e := range events {
		if e.Overdue {
			dto.Overdue++
		}
	}
	if q.UpcomingOnly {
		limit := q.Limit
		if limit <= 0 || limit > len(events) {
			limit = len(events)
		}
		dto.Events = progress.Upcoming(events, limit)
	}
	return dto, nil
}
